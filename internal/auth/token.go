// Package auth issues and verifies the signed access tokens carried in the
// Authorization header, and generates opaque refresh tokens.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tokenVersion prefixes every access token and is covered by the signature.
const tokenVersion = "sym1"

var b64 = base64.RawURLEncoding

// Claims is the signed payload of an access token.
type Claims struct {
	UserID   int64  `json:"sub"`
	Email    string `json:"email"`
	JTI      string `json:"jti"`
	IssuedAt int64  `json:"iat,omitempty"`
	Exp      int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// NewClaims returns claims for userID that expire after ttl.
func NewClaims(userID int64, email string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UserID:   userID,
		Email:    email,
		JTI:      uuid.NewString(),
		IssuedAt: now.Unix(),
		Exp:      now.Add(ttl).Unix(),
	}
}

func (c Claims) valid() bool {
	return c.UserID > 0 && c.JTI != "" && c.Exp != 0
}

// IssueToken encodes claims as "sym1.<payload>.<mac>".
func IssueToken(secret []byte, claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	signed := tokenVersion + "." + b64.EncodeToString(raw)
	return signed + "." + b64.EncodeToString(mac(secret, signed)), nil
}

// ParseToken verifies the signature before looking at the payload, then
// rejects incomplete and expired claims.
func ParseToken(secret []byte, token string) (Claims, error) {
	cut := strings.LastIndexByte(token, '.')
	if cut < 0 {
		return Claims{}, ErrInvalidToken
	}
	signed, sig := token[:cut], token[cut+1:]

	version, payload, ok := strings.Cut(signed, ".")
	if !ok || version != tokenVersion || strings.Contains(payload, ".") {
		return Claims{}, ErrInvalidToken
	}
	gotMAC, err := b64.DecodeString(sig)
	if err != nil || !hmac.Equal(gotMAC, mac(secret, signed)) {
		return Claims{}, ErrInvalidToken
	}

	raw, err := b64.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil || !claims.valid() {
		return Claims{}, ErrInvalidToken
	}
	if !time.Now().Before(time.Unix(claims.Exp, 0)) {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func mac(secret []byte, message string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(message))
	return h.Sum(nil)
}

// NewRefreshToken returns a random opaque token. Only its hash is stored.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return b64.EncodeToString(b), nil
}

// HashToken is the hex SHA-256 of value, used as the refresh session key.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
