// Package auth verifies signed identity tokens on auth frames. The
// verification key comes from the service-account material the deployment
// already carries; when none is configured the service trusts the bare
// user_id, matching the auth provider sitting in front of it.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks EdDSA identity tokens. A nil *Verifier is valid and
// accepts every user_id unverified.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// Signer mints identity tokens; used by tests and by deployments that run
// their own auth bridge.
type Signer struct {
	privateKey ed25519.PrivateKey
}

// InitFromEnv builds a Verifier from AUTH_PUBLIC_KEY_FILE (path to raw key
// bytes) or AUTH_PUBLIC_KEY (base64 inline payload). Returns nil when
// neither is set.
func InitFromEnv() (*Verifier, error) {
	if path := os.Getenv("AUTH_PUBLIC_KEY_FILE"); path != "" {
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key file: %w", err)
		}
		return newVerifier(keyData)
	}
	if inline := os.Getenv("AUTH_PUBLIC_KEY"); inline != "" {
		keyData, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline public key: %w", err)
		}
		return newVerifier(keyData)
	}
	return nil, nil
}

func newVerifier(keyData []byte) (*Verifier, error) {
	if len(keyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(keyData))
	}
	return &Verifier{publicKey: ed25519.PublicKey(keyData)}, nil
}

// NewKeyPair generates a fresh ed25519 pair, for tests and key rotation
// tooling.
func NewKeyPair() (*Signer, *Verifier, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Signer{privateKey: privateKey}, &Verifier{publicKey: publicKey}, nil
}

// Enabled reports whether token verification is required.
func (v *Verifier) Enabled() bool {
	return v != nil
}

// Verify checks a token string and returns its "sub" claim.
func (v *Verifier) Verify(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return sub, nil
}

// Sign creates a token with "sub" = userID.
func (s *Signer) Sign(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}
