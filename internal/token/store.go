package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound means no record file exists at the given path
	ErrNotFound = errors.New("token file not found")

	// ErrStoreIO wraps read/write failures of the record file
	ErrStoreIO = errors.New("token store IO error")

	// ErrInvalidValue means a record value cannot be represented in the
	// line-based file format
	ErrInvalidValue = errors.New("token value contains a newline")
)

// file keys, one per line as key=value
const (
	keyClientID     = "client_id"
	keyClientSecret = "client_secret"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresIn    = "expires_in"
)

// LoadRecord reads a credential record from the key=value file at path.
// Unknown keys are ignored; missing keys default to the empty string.
func LoadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	var rec Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case keyClientID:
			rec.ClientID = value
		case keyClientSecret:
			rec.ClientSecret = value
		case keyAccessToken:
			rec.AccessToken = value
		case keyRefreshToken:
			rec.RefreshToken = value
		case keyExpiresIn:
			rec.ExpiresHint = value
		}
	}
	return rec, nil
}

// SaveRecord writes the record to path. The write is atomic from the
// caller's perspective: the content goes to a temp file in the same
// directory which is renamed over path, so a failed save leaves the previous
// file untouched. Values containing newlines are rejected before any write
// since the line-based format cannot carry them.
func SaveRecord(path string, rec Record) error {
	values := []struct {
		key   string
		value string
	}{
		{keyClientID, rec.ClientID},
		{keyClientSecret, rec.ClientSecret},
		{keyAccessToken, rec.AccessToken},
		{keyRefreshToken, rec.RefreshToken},
		{keyExpiresIn, rec.ExpiresHint},
	}

	var sb strings.Builder
	for _, v := range values {
		if strings.ContainsAny(v.value, "\r\n") {
			return fmt.Errorf("%w: %s", ErrInvalidValue, v.key)
		}
		sb.WriteString(v.key)
		sb.WriteString("=")
		sb.WriteString(v.value)
		sb.WriteString("\n")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}
