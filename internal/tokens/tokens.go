// Package tokens issues and validates acknowledgement tokens. A token
// binds a (notification, engineer) pair and is signed with a process-wide
// secret; the raw secret never leaves the service.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	remerrors "github.com/remedyops/remedy/internal/errors"
)

const nonceBytes = 16

// Token is an issued acknowledgement token and its expiry.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service signs and verifies acknowledgement tokens.
type Service struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService creates a token service with the given signing secret.
func NewService(secret string, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Service{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Generate produces a token for the notification/engineer pair. The token
// is four dot-separated fields: hex nonce, notification ID, engineer ID,
// and a hex HMAC-SHA256 signature over the first three.
func (s *Service) Generate(notificationID, engineerID string, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return Token{}, err
	}

	nonceHex := hex.EncodeToString(nonce)
	sig := s.sign(nonceHex, notificationID, engineerID)

	return Token{
		Value:     strings.Join([]string{nonceHex, notificationID, engineerID, sig}, "."),
		ExpiresAt: s.now().Add(ttl),
	}, nil
}

// Validate checks a token against the expected notification/engineer pair
// and expiry. It fails closed with a specific reason: expiry is checked
// before anything else, so no token is ever valid past its expiry
// regardless of signature correctness.
func (s *Service) Validate(token, notificationID, engineerID string, expiresAt time.Time) error {
	if s.now().After(expiresAt) {
		return remerrors.NewTokenError(remerrors.TokenExpired)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return remerrors.NewTokenError(remerrors.TokenMalformed)
	}
	nonceHex, notifID, engID, sig := parts[0], parts[1], parts[2], parts[3]

	if notifID != notificationID || engID != engineerID {
		return remerrors.NewTokenError(remerrors.TokenMismatch)
	}

	expected := s.sign(nonceHex, notifID, engID)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return remerrors.NewTokenError(remerrors.TokenBadSignature)
	}

	return nil
}

func (s *Service) sign(nonceHex, notificationID, engineerID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(nonceHex))
	mac.Write([]byte("|"))
	mac.Write([]byte(notificationID))
	mac.Write([]byte("|"))
	mac.Write([]byte(engineerID))
	return hex.EncodeToString(mac.Sum(nil))
}
