package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotInitialized is returned by package-level helpers before Init.
var ErrNotInitialized = errors.New("cache: client not initialized")

const pingTimeout = 5 * time.Second

// Config holds the Redis connection settings for the shared client.
type Config struct {
	Address  string
	Password string
	DB       int
}

var client *redis.Client

// Init dials Redis and installs the shared client. Must be called once
// at startup before any package-level helper.
func Init(cfg Config) error {
	if cfg.Address == "" {
		return errors.New("cache: address is required")
	}

	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: connect %s: %w", cfg.Address, err)
	}

	client = c
	return nil
}

// Client returns the shared Redis client, or nil before Init.
func Client() *redis.Client {
	return client
}

// IsInitialized reports whether Init has completed successfully.
func IsInitialized() bool {
	return client != nil
}

// Ping verifies the shared client can still reach Redis.
func Ping() error {
	if client == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

// Close tears down the shared client.
func Close() error {
	if client == nil {
		return ErrNotInitialized
	}
	err := client.Close()
	client = nil
	if err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}
