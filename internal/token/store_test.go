package token

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRecord_NotFound(t *testing.T) {
	_, err := LoadRecord(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRecord_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")

	rec := Record{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		AccessToken:  "access-789",
		RefreshToken: "refresh-abc",
		ExpiresHint:  "86400",
	}
	require.NoError(t, SaveRecord(path, rec))

	loaded, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestLoadRecord_IgnoresUnknownKeysAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	content := strings.Join([]string{
		"client_id=my-client",
		"",
		"some_future_key=whatever",
		"not a key value line",
		"access_token=tok",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "my-client", rec.ClientID)
	assert.Equal(t, "tok", rec.AccessToken)
	assert.Empty(t, rec.RefreshToken)
}

func TestLoadRecord_TrimsCarriageReturns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	require.NoError(t, os.WriteFile(path, []byte("access_token=tok\r\nrefresh_token=ref\r\n"), 0o600))

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", rec.AccessToken)
	assert.Equal(t, "ref", rec.RefreshToken)
}

func TestLoadRecord_ValueWithEquals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	require.NoError(t, os.WriteFile(path, []byte("access_token=abc=def==\n"), 0o600))

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "abc=def==", rec.AccessToken)
}

func TestSaveRecord_RejectsNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")

	// Seed a valid file first so we can check it is not clobbered.
	require.NoError(t, SaveRecord(path, Record{AccessToken: "old"}))

	err := SaveRecord(path, Record{AccessToken: "evil\ninjected=value"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "old", rec.AccessToken)
}

func TestSaveRecord_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")

	require.NoError(t, SaveRecord(path, Record{AccessToken: "first"}))
	require.NoError(t, SaveRecord(path, Record{AccessToken: "second", RefreshToken: "ref"}))

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.AccessToken)
	assert.Equal(t, "ref", rec.RefreshToken)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_Authenticated(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"empty", Record{}, false},
		{"refresh only", Record{RefreshToken: "ref"}, false},
		{"access only", Record{AccessToken: "tok"}, false},
		{"full pair", Record{AccessToken: "tok", RefreshToken: "ref"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Authenticated())
		})
	}
}
