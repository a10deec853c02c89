package auth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/noodle-soup/noodle/internal/platform/workerpool"
	"github.com/noodle-soup/noodle/internal/shared"
)

// BcryptHasher hashes and verifies passwords on a worker pool so request
// goroutines only wait on the result.
type BcryptHasher struct {
	pool *workerpool.Pool
	cost int

	dummyOnce sync.Once
	dummy     []byte
	dummyErr  error
}

// NewBcryptHasher returns a hasher running on pool. A cost outside the
// bcrypt range falls back to bcrypt.DefaultCost.
func NewBcryptHasher(pool *workerpool.Pool, cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{pool: pool, cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	return workerpool.Run(ctx, h.pool, func() (string, error) {
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", shared.NewValidationError("password", "tooLong")
		}
		return string(out), err
	})
}

// Verify reports whether password matches hash. An empty hash is checked
// against a fixed dummy hash and always reports false, so unknown accounts
// take as long as wrong passwords.
func (h *BcryptHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	return workerpool.Run(ctx, h.pool, func() (bool, error) {
		target := []byte(hash)
		if hash == "" {
			dummy, err := h.dummyHash()
			if err != nil {
				return false, err
			}
			target = dummy
		}
		err := bcrypt.CompareHashAndPassword(target, []byte(password))
		switch {
		case err == nil:
			return hash != "", nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		}
		return false, err
	})
}

func (h *BcryptHasher) dummyHash() ([]byte, error) {
	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = bcrypt.GenerateFromPassword([]byte("noodle-dummy-password"), h.cost)
	})
	return h.dummy, h.dummyErr
}
