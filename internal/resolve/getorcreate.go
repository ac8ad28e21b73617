package resolve

import (
	"context"
	"errors"

	"github.com/justestif/scrobble-archiver/internal/db"
)

// getOrCreate returns the stored entity for key, or builds one with create
// and stores it with insert. create usually calls the catalog; it is skipped
// entirely when the entity already exists.
func getOrCreate[T any](
	ctx context.Context,
	key string,
	find func(context.Context, string) (*T, error),
	create func(context.Context, string) (*T, error),
	insert func(context.Context, *T) error,
) (*T, error) {
	found, err := find(ctx, key)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	entity, err := create(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := insert(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}
