// Package guard resolves the caller behind a bearer token and decides whether
// that caller may touch a given expense.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

var (
	// ErrUnauthenticated means the credential was missing or did not verify.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound means the expense does not exist, or it belongs to someone
	// else and ownership failures are masked.
	ErrNotFound = errors.New("expense not found or not authorized")
	// ErrForbidden means the expense belongs to someone else and ownership
	// failures are not masked.
	ErrForbidden = errors.New("expense belongs to another user")
)

// Policy controls how ownership failures are reported.
type Policy struct {
	// MaskOwnershipFailures reports another user's expense exactly like a
	// missing one, so callers cannot probe for existing IDs.
	MaskOwnershipFailures bool
}

// DefaultPolicy masks ownership failures.
func DefaultPolicy() Policy {
	return Policy{MaskOwnershipFailures: true}
}

// TokenVerifier returns the username a token was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserLookup finds users by username.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Guard authenticates callers and enforces expense ownership.
type Guard struct {
	tokens TokenVerifier
	users  UserLookup
	policy Policy
}

// New creates a Guard.
func New(tokens TokenVerifier, users UserLookup, policy Policy) *Guard {
	return &Guard{tokens: tokens, users: users, policy: policy}
}

// Policy returns the guard's ownership policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// ResolveCaller returns the user a bearer credential was issued for.
func (g *Guard) ResolveCaller(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	username, err := g.tokens.Verify(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user %q", ErrUnauthenticated, username)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	return user, nil
}

// AuthorizeOwnership reports whether caller owns e.
func (g *Guard) AuthorizeOwnership(e *models.Expense, caller *models.User) bool {
	return e != nil && caller != nil && e.UserID == caller.ID
}

// CheckAccess returns nil when caller owns e. A nil e is ErrNotFound; a
// foreign e is ErrNotFound or ErrForbidden depending on the policy.
func (g *Guard) CheckAccess(e *models.Expense, caller *models.User) error {
	if g.AuthorizeOwnership(e, caller) {
		return nil
	}
	if e == nil || g.policy.MaskOwnershipFailures {
		return ErrNotFound
	}
	return ErrForbidden
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header does not use the Bearer scheme.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
