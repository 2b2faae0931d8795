package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	now := time.Now()
	tok, err := Issue("s3cret", "sub-1", "subm-1", time.Hour, now)
	require.NoError(t, err)

	claims, err := Parse(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", claims.Subject)
	assert.Equal(t, "subm-1", claims.SubmissionID)
	assert.NoError(t, claims.Authorize("sub-1"))

	var forbidden ForbiddenError
	assert.True(t, errors.As(claims.Authorize("sub-2"), &forbidden))
	assert.Equal(t, "sub-2", forbidden.SubmitterID)
}

func TestParseRejects(t *testing.T) {
	now := time.Now()
	tok, err := Issue("s3cret", "sub-1", "", time.Hour, now)
	require.NoError(t, err)

	_, err = Parse(tok, "other")
	assert.Error(t, err)

	_, err = Parse(tok, "")
	assert.ErrorIs(t, err, ErrSecretMissing)

	expired, err := Issue("s3cret", "sub-1", "", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(expired, "s3cret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, FormClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "sub-1"}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Parse(raw, "s3cret")
	assert.Error(t, err)

	_, err = Issue("", "sub-1", "", time.Hour, now)
	assert.ErrorIs(t, err, ErrSecretMissing)
}
