// Package authz validates bearer-token JWTs presented by REST and websocket
// clients. Unlike the teacher's auth package, this module never issues
// tokens itself — it trusts an operator-provided RSA public key and only
// verifies what it is handed, since token issuance (login flows, refresh
// tokens, OIDC) is out of scope for this module.
package authz

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a JWT's exp claim has passed.
	ErrTokenExpired = errors.New("authz: token expired")
	// ErrTokenInvalid is returned when a token cannot be parsed or verified.
	ErrTokenInvalid = errors.New("authz: token invalid")
)

// Claims holds the custom JWT claims this module expects on every access
// token, alongside the standard registered claims (exp, iat, iss).
type Claims struct {
	jwt.RegisteredClaims

	// Username identifies the acting user; Job ownership and the
	// job-user-<username> event topic are both keyed on this value.
	Username string `json:"username"`
}

// Validator verifies RS256-signed access tokens against a fixed public key.
type Validator struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewValidatorFromPEM parses a PKIX-encoded RSA public key and returns a
// Validator that checks tokens were issued by issuer.
func NewValidatorFromPEM(publicKeyPEM []byte, issuer string) (*Validator, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("authz: failed to decode public key PEM block")
	}

	pubInterface, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authz: parsing public key: %w", err)
	}
	publicKey, ok := pubInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("authz: public key is not an RSA key")
	}

	return &Validator{publicKey: publicKey, issuer: issuer}, nil
}

// Validate parses and verifies tokenString, rejecting anything not signed
// with RS256 (preventing "alg:none" and HMAC key-confusion attacks) or
// issued by a different issuer.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
				return nil, fmt.Errorf("authz: unexpected signing method: %v", t.Header["alg"])
			}
			return v.publicKey, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
