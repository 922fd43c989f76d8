package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_hashPassword_verifyPassword(t *testing.T) {
	hash, err := hashPassword("password")
	assert.NoError(t, err, "expected no error hashing password")
	assert.NotEqual(t, "password", hash, "expected hash to differ from plaintext")

	assert.True(t, verifyPassword(hash, "password"), "expected matching password to verify")
	assert.False(t, verifyPassword(hash, "wrong"), "expected mismatched password to fail")
}

func Test_createJwtForSession_roundTrip(t *testing.T) {
	app := &ChatApp{signingKey: []byte("test-signing-key")}

	token, err := app.createJwtForSession(42, defaultJwtExpiration)
	assert.NoError(t, err, "expected no error creating token")
	assert.NotEmpty(t, token, "expected a signed token")

	userId, err := app.extractUserIdFromToken(token)
	assert.NoError(t, err, "expected no error verifying token")
	assert.Equal(t, 42, userId, "expected user id claim to round-trip")
}

func Test_extractUserIdFromToken_rejectsBadTokens(t *testing.T) {
	app := &ChatApp{signingKey: []byte("test-signing-key")}

	_, err := app.extractUserIdFromToken("not-a-token")
	assert.Error(t, err, "expected error for a malformed token")

	other := &ChatApp{signingKey: []byte("other-key")}
	token, err := other.createJwtForSession(42, defaultJwtExpiration)
	assert.NoError(t, err, "expected no error creating token")

	_, err = app.extractUserIdFromToken(token)
	assert.Error(t, err, "expected error for a token signed with a different key")
}

func Test_expiredTokenRejected(t *testing.T) {
	app := &ChatApp{signingKey: []byte("test-signing-key")}

	token, err := app.createJwtForSession(42, -defaultJwtExpiration)
	assert.NoError(t, err, "expected no error creating token")

	_, err = app.extractUserIdFromToken(token)
	assert.Error(t, err, "expected error for an expired token")
}
