// Package storage provides the durable key-value stores the cart is persisted to.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Storage is a byte-valued key-value store. Set fully overwrites the previous value.
type Storage interface {
	// Get returns ErrNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
