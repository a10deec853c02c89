package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noodle-soup/noodle/internal/auth"
	"github.com/noodle-soup/noodle/internal/platform/workerpool"
	"github.com/noodle-soup/noodle/internal/shared"
)

func newHasher(t *testing.T) (*auth.BcryptHasher, *workerpool.Pool) {
	t.Helper()
	pool := workerpool.New(2)
	t.Cleanup(pool.Close)
	return auth.NewBcryptHasher(pool, bcrypt.MinCost), pool
}

func TestHashAndVerify(t *testing.T) {
	h, _ := newHasher(t)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "Tr0ub4dor&3")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "Tr0ub4dor&3", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyEmptyHashNeverMatches(t *testing.T) {
	h, _ := newHasher(t)

	ok, err := h.Verify(context.Background(), "noodle-dummy-password", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyOnClosedPoolIsDispatchError(t *testing.T) {
	h, pool := newHasher(t)
	pool.Close()

	_, err := h.Verify(context.Background(), "x", "")
	var de *shared.TaskDispatchError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, workerpool.ErrClosed)
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	h, _ := newHasher(t)
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}

	_, err := h.Hash(context.Background(), string(long))
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
}
