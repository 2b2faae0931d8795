// Package auth issues and checks the form tokens a party signs in with.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "signflow"

// ForbiddenError indicates a token used for another party's form.
type ForbiddenError struct {
	SubmitterID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("token does not grant access to submitter %s", e.SubmitterID)
}

var ErrSecretMissing = errors.New("form token secret not configured")

// FormClaims bind a token to one party. Subject is the submitter id.
type FormClaims struct {
	jwt.RegisteredClaims
	SubmissionID string `json:"sid,omitempty"`
}

// Issue signs a form token valid for ttl from now. A zero ttl never expires.
func Issue(secret, submitterID, submissionID string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrSecretMissing
	}
	if submitterID == "" {
		return "", errors.New("submitter id required")
	}
	claims := FormClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  submitterID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		SubmissionID: submissionID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies an HS256 form token and returns its claims.
func Parse(token, secret string) (FormClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return FormClaims{}, ErrSecretMissing
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	claims := &FormClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return FormClaims{}, err
	}
	if !parsed.Valid {
		return FormClaims{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return FormClaims{}, errors.New("subject claim required")
	}
	return *claims, nil
}

// Authorize checks that the claims belong to submitterID.
func (c FormClaims) Authorize(submitterID string) error {
	if c.Subject != submitterID {
		return ForbiddenError{SubmitterID: submitterID}
	}
	return nil
}
