// Package kv holds the key-value backends the app state is persisted to.
// Each blob is stored as an opaque string under a fixed key.
package kv

import "context"

type Store interface {
	// Get reports ok=false when key has never been written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
