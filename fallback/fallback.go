// Package fallback tries a list of providers in order and keeps the first
// that succeeds. It does not care what is being loaded.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

var ErrExhausted = errors.New("all sources failed")

// Provider loads a T from one named source.
type Provider[T any] struct {
	Name string
	Load func(ctx context.Context) (T, error)
}

// First returns the value of the first provider that succeeds and its index.
// When all fail the returned error wraps ErrExhausted and every failure.
func First[T any](ctx context.Context, providers ...Provider[T]) (T, int, error) {
	var zero T
	var errs []error
	for i, p := range providers {
		if err := ctx.Err(); err != nil {
			return zero, -1, err
		}
		v, err := p.Load(ctx)
		if err == nil {
			return v, i, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	if len(errs) == 0 {
		return zero, -1, fmt.Errorf("%w: no sources configured", ErrExhausted)
	}
	return zero, -1, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}
