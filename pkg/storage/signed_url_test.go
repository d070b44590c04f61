package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("run-7", "run-run-7-20260310T120000Z.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	runID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "run-7", runID)
	require.Equal(t, "run-run-7-20260310T120000Z.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Generate("run-7", "report.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	// Cleanup paths still need the metadata of expired tokens.
	runID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "run-7", runID)
	require.Equal(t, "report.csv", path)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("run-7", "report.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "run-8"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	other := NewSignedURLSigner("different", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestSignedURLRequiresInputs(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "report.csv")
	require.Error(t, err)
	_, _, err = signer.Generate("run-7", "")
	require.Error(t, err)

	unkeyed := NewSignedURLSigner("", time.Hour)
	_, _, err = unkeyed.Generate("run-7", "report.csv")
	require.Error(t, err)
}
