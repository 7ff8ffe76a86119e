package timecache

import (
	"strings"

	"github.com/google/uuid"
)

// LocalIDPrefix marks task ids created on this device and not yet saved on the server.
const LocalIDPrefix = "local-"

// NewLocalID returns a fresh unsaved task id.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was created by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
