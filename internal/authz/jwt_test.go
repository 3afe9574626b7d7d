package authz

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return priv, pubPEM
}

func sign(t *testing.T, priv *rsa.PrivateKey, issuer string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Username: "alice",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestValidateAcceptsWellFormedToken(t *testing.T) {
	priv, pubPEM := generateKeyPair(t)
	v, err := NewValidatorFromPEM(pubPEM, "runforge")
	if err != nil {
		t.Fatalf("NewValidatorFromPEM: %v", err)
	}

	tok := sign(t, priv, "runforge", time.Now().Add(time.Hour))
	claims, err := v.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want alice", claims.Username)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	priv, pubPEM := generateKeyPair(t)
	v, _ := NewValidatorFromPEM(pubPEM, "runforge")

	tok := sign(t, priv, "runforge", time.Now().Add(-time.Hour))
	if _, err := v.Validate(tok); err != ErrTokenExpired {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	priv, pubPEM := generateKeyPair(t)
	v, _ := NewValidatorFromPEM(pubPEM, "runforge")

	tok := sign(t, priv, "someone-else", time.Now().Add(time.Hour))
	if _, err := v.Validate(tok); err != ErrTokenInvalid {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateRejectsTokenSignedByDifferentKey(t *testing.T) {
	_, pubPEM := generateKeyPair(t)
	otherPriv, _ := generateKeyPair(t)
	v, _ := NewValidatorFromPEM(pubPEM, "runforge")

	tok := sign(t, otherPriv, "runforge", time.Now().Add(time.Hour))
	if _, err := v.Validate(tok); err != ErrTokenInvalid {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
