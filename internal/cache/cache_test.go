package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YodHeVauHe/CallCenterX/internal/identity"
)

func TestTokenSignature(t *testing.T) {
	a := TokenSignature("token-a")
	b := TokenSignature("token-b")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, TokenSignature("token-a"))
	assert.Len(t, a, 64)
	// The raw token must not appear in the key material.
	assert.NotContains(t, a, "token-a")
}

func TestNoopCache(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sig", identity.UserIdentity{ID: "u1", Name: "Jane"}, time.Minute))

	got, err := c.Get(ctx, "sig")
	require.NoError(t, err)
	assert.Nil(t, got, "noop cache never stores")

	assert.NoError(t, c.Delete(ctx, "sig"))
}
