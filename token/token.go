package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed payload of every session and reset token. Reset tokens
// carry a keyed digest of the code in PasswordResetDigit, never the code.
type Claims struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	IsAdmin            bool   `json:"isAdmin"`
	PasswordResetDigit string `json:"passwordResetDigit,omitempty"`
	jwt.RegisteredClaims
}

// IsReset reports whether the token was minted for the password reset flow.
func (c *Claims) IsReset() bool { return c.PasswordResetDigit != "" }

// Issuer signs and verifies HS256 tokens. A zero TTL produces a token without expiry.
type Issuer struct {
	secret   []byte
	userTTL  time.Duration
	adminTTL time.Duration
	resetTTL time.Duration
}

func NewIssuer(secret []byte, userTTL, adminTTL, resetTTL time.Duration) *Issuer {
	return &Issuer{secret: secret, userTTL: userTTL, adminTTL: adminTTL, resetTTL: resetTTL}
}

func (i *Issuer) IssueUser(id, email string) (string, error) {
	return i.sign(Claims{ID: id, Email: email}, i.userTTL)
}

func (i *Issuer) IssueAdmin(id, email string) (string, error) {
	return i.sign(Claims{ID: id, Email: email, IsAdmin: true}, i.adminTTL)
}

func (i *Issuer) IssueReset(id, email, code string) (string, error) {
	return i.sign(Claims{ID: id, Email: email, PasswordResetDigit: i.resetDigest(id, code)}, i.resetTTL)
}

// CheckResetCode reports whether code is the one the reset token was issued for.
func (i *Issuer) CheckResetCode(c *Claims, code string) bool {
	if !c.IsReset() {
		return false
	}
	want, err := hex.DecodeString(c.PasswordResetDigit)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(i.resetDigest(c.ID, strings.TrimSpace(code)))
	return hmac.Equal(got, want)
}

func (i *Issuer) resetDigest(id, code string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(id + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (i *Issuer) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw, which may carry a "Bearer " prefix, and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "Bearer ") {
		raw = raw[7:]
	}
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
