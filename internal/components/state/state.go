// Package state holds process-wide configuration values that are loaded lazily from
// persistence the first time they are read.
package state

import (
	"context"
	"sync"
)

// Value is a lazily loaded, persisted value.
//
// Get loads the value through the loader at most once until Invalidate is called.
// Set persists through the saver before updating the in-memory copy, so a failed save
// never leaves the two out of sync.
type Value[T any] struct {
	load func(ctx context.Context) (T, error)
	save func(ctx context.Context, value T) error

	lock   sync.Mutex
	loaded bool
	value  T
}

func NewValue[T any](
	load func(ctx context.Context) (T, error),
	save func(ctx context.Context, value T) error,
) *Value[T] {
	return &Value[T]{load: load, save: save}
}

func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.loaded {
		return v.value, nil
	}
	value, err := v.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.value = value
	v.loaded = true
	return value, nil
}

func (v *Value[T]) Set(ctx context.Context, value T) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.save != nil {
		err := v.save(ctx, value)
		if err != nil {
			return err
		}
	}
	v.value = value
	v.loaded = true
	return nil
}

// Invalidate forces the next Get to reload from persistence.
func (v *Value[T]) Invalidate() {
	v.lock.Lock()
	defer v.lock.Unlock()

	var zero T
	v.value = zero
	v.loaded = false
}
