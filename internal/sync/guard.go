package sync

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Guard deduplicates concurrent sync attempts per plan: while a sync for
// a plan id is in flight, further attempts for the same id share its
// result instead of racing it.
type Guard struct {
	group singleflight.Group
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Do runs fn under the given key, or joins an in-flight run for the same
// key and returns its error.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	_, err, _ := g.group.Do(key, func() (any, error) {
		return nil, fn(ctx)
	})

	return err
}
