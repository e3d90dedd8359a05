// Package token issues and verifies the attestation cookie handed out after a
// successful collection.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "argus_token"

var ErrClientMismatch = errors.New("token issued to another client")

type Claims struct {
	SignatureID string `json:"sid"`
	IsLikelyBot bool   `json:"bot"`
	ClientIP    string `json:"ip"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs an HS256 token for the given collection outcome.
func (i *Issuer) Issue(signatureID string, isLikelyBot bool, clientIP string) (string, error) {
	now := i.now()
	claims := Claims{
		SignatureID: signatureID,
		IsLikelyBot: isLikelyBot,
		ClientIP:    clientIP,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks that it was issued to clientIP.
func (i *Issuer) Verify(raw, clientIP string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ClientIP != clientIP {
		return nil, ErrClientMismatch
	}
	return claims, nil
}
