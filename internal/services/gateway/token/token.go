// Package token issues and verifies bearer tokens for the protected
// SPARQL gateway.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
)

// signingMethod is the only accepted JWT algorithm.
const signingMethod = "HS256"

// Claims captures validated access token claims.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Verifier checks HMAC-signed access tokens.
type Verifier struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

// NewVerifier builds a verifier for the given issuer and shared secret.
func NewVerifier(issuer string, secret []byte) *Verifier {
	return &Verifier{Issuer: issuer, Secret: secret, Now: time.Now}
}

// Issue mints a signed token for subject with the given lifetime.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	if v == nil || len(v.Secret) == 0 {
		return "", errors.New("token signer is not configured")
	}
	now := v.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    v.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token is required")
	}
	if v == nil || len(v.Secret) == 0 {
		return Claims{}, errors.New("token verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		return v.Secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if v.Issuer != "" && parsed.Issuer != v.Issuer {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token issuer mismatch")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token exp is required")
	}

	now := v.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token not active yet")
	}

	claims := Claims{
		Subject:   parsed.Subject,
		Issuer:    parsed.Issuer,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func (v *Verifier) now() time.Time {
	if v != nil && v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value.
func FromAuthorizationHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(header[len(prefix):])
	return tokenString, tokenString != ""
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "access token is invalid")
}
