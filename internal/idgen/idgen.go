package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixCapture = "cap_"
)

// NewCapture generates a new capture ID with cap_ prefix
func NewCapture() string {
	return PrefixCapture + uuid.New().String()
}

// New generates a generic UUID without prefix (for internal use only)
func New() string {
	return uuid.New().String()
}

// Short generates the compact form used in file names
func Short() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}
