package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f[username]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

type failingUsers struct{}

func (failingUsers) GetUserByUsername(context.Context, string) (*models.User, error) {
	return nil, errors.New("disk on fire")
}

var (
	alice = &models.User{ID: 1, Username: "alice"}
	bob   = &models.User{ID: 2, Username: "bob"}
)

func newTestGuard(policy Policy) (*Guard, *auth.TokenIssuer) {
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	users := fakeUsers{"alice": alice, "bob": bob}
	return New(issuer, users, policy), issuer
}

func TestResolveCaller(t *testing.T) {
	g, issuer := newTestGuard(DefaultPolicy())
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	user, err := g.ResolveCaller(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, user)
}

func TestResolveCaller_Unauthenticated(t *testing.T) {
	g, issuer := newTestGuard(DefaultPolicy())
	ghostToken, err := issuer.Issue("ghost")
	require.NoError(t, err)
	foreignToken, err := auth.NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour).Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
	}{
		{"missing", ""},
		{"malformed", "not-a-token"},
		{"wrong signature", foreignToken},
		{"unknown user", ghostToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ResolveCaller(context.Background(), tt.credential)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestResolveCaller_StorageFailure(t *testing.T) {
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = New(issuer, failingUsers{}, DefaultPolicy()).ResolveCaller(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthorizeOwnership(t *testing.T) {
	g, _ := newTestGuard(DefaultPolicy())
	mine := &models.Expense{ID: 10, UserID: alice.ID}

	assert.True(t, g.AuthorizeOwnership(mine, alice))
	assert.False(t, g.AuthorizeOwnership(mine, bob))
	assert.False(t, g.AuthorizeOwnership(nil, alice))
	assert.False(t, g.AuthorizeOwnership(mine, nil))
}

func TestCheckAccess(t *testing.T) {
	mine := &models.Expense{ID: 10, UserID: alice.ID}

	tests := []struct {
		name    string
		mask    bool
		expense *models.Expense
		caller  *models.User
		want    error
	}{
		{"owner masked", true, mine, alice, nil},
		{"owner unmasked", false, mine, alice, nil},
		{"missing masked", true, nil, alice, ErrNotFound},
		{"missing unmasked", false, nil, alice, ErrNotFound},
		{"foreign masked", true, mine, bob, ErrNotFound},
		{"foreign unmasked", false, mine, bob, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGuard(Policy{MaskOwnershipFailures: tt.mask})
			err := g.CheckAccess(tt.expense, tt.caller)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BearerToken(tt.header), "header %q", tt.header)
	}
}
