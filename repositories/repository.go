package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("document not found")

const opTimeout = 5 * time.Second

// FindOption relaxes a repository's default filter for one call.
type FindOption func(*findConfig)

type findConfig struct {
	includeInactive bool
	includeSecret   bool
}

// IncludeInactive also matches deactivated users.
func IncludeInactive() FindOption {
	return func(c *findConfig) { c.includeInactive = true }
}

// IncludeSecret also matches secret tours.
func IncludeSecret() FindOption {
	return func(c *findConfig) { c.includeSecret = true }
}

func applyOptions(opts []FindOption) findConfig {
	var c findConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// copyFilter returns a shallow copy so default filters never leak into the caller's map.
func copyFilter(filter bson.M) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

func decodeOne[T any](res *mongo.SingleResult, op string) (*T, error) {
	var doc T
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	return &doc, nil
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, op string) ([]T, error) {
	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return docs, nil
}
