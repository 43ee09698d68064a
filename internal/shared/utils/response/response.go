package response

import "github.com/gin-gonic/gin"

// Envelope is the error payload shape shared by middleware (auth, rate
// limiting). Controllers shape their own success bodies per resource.
type Envelope struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Errors     interface{} `json:"errors,omitempty"`
}

// Error writes a bare error envelope with the given status code.
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{
		Status:     "error",
		StatusCode: code,
		Message:    message,
	})
}

// ErrorWithDetails writes an error envelope carrying structured details,
// e.g. rate-limit bookkeeping for clients that back off.
func ErrorWithDetails(c *gin.Context, code int, message string, details interface{}) {
	c.JSON(code, Envelope{
		Status:     "error",
		StatusCode: code,
		Message:    message,
		Errors:     details,
	})
}
