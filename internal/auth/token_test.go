package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/prelook/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Issue(&models.Account{Email: "a@x.io", Role: models.RolePartner})
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", claims.Email)
	assert.Equal(t, "PARTNER", claims.Role)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(&models.Account{Email: "a@x.io"})
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Minute).Parse(token)
	assert.Error(t, err)
}

func TestAccountContext(t *testing.T) {
	_, ok := AccountFrom(context.Background())
	assert.False(t, ok)

	ctx := WithAccount(context.Background(), &models.Account{Email: "a@x.io"})
	a, ok := AccountFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "a@x.io", a.Email)
}
