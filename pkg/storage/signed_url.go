package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenSeparator = "."

// SignedURLSigner mints and validates download tokens for archived run
// reports. A token binds run ID, archive path, and expiry under an HMAC so a
// report link can be handed out without another authenticated round trip.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer. TTL defaults to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate returns a token for the run's archived report.
func (s *SignedURLSigner) Generate(runID, relPath string) (string, time.Time, error) {
	if runID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("run id and report path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := time.Now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	signature := s.sign(runID, ts, encodedPath)

	token := strings.Join([]string{runID, ts, encodedPath, signature}, tokenSeparator)
	return token, expiresAt, nil
}

// Parse validates a token and returns the run ID and report path. With
// allowExpired the timestamp check is skipped, for cleanup paths.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (runID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	runID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(runID, ts, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid token timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode report path: %w", err)
	}
	return runID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(runID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", runID, ts, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}
