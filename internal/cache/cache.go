// Package cache provides optional caching of assembled identities for the
// authproxy's bearer-token lookups, keyed by access-token signature.
package cache

import (
	"context"
	"time"

	"github.com/YodHeVauHe/CallCenterX/internal/identity"
)

// IdentityCache caches assembled identities. A (nil, nil) Get result means
// cache miss.
type IdentityCache interface {
	Get(ctx context.Context, tokenSignature string) (*identity.UserIdentity, error)
	Set(ctx context.Context, tokenSignature string, id identity.UserIdentity, ttl time.Duration) error
	Delete(ctx context.Context, tokenSignature string) error
}

// NewNoop returns a cache that never stores anything. Used when Redis is not
// configured.
func NewNoop() IdentityCache { return noopCache{} }

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*identity.UserIdentity, error) {
	return nil, nil
}

func (noopCache) Set(context.Context, string, identity.UserIdentity, time.Duration) error {
	return nil
}

func (noopCache) Delete(context.Context, string) error {
	return nil
}
