package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Generate("a@x.com")
	require.NoError(t, err)

	email, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
}

func TestTokenIssuer_RejectsOtherSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour).Generate("a@x.com")
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", -time.Minute)
	token, err := issuer.Generate("a@x.com")
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.Error(t, err)
}
