package models

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IDLength is the length of every generated entity id.
const IDLength = 32

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NewID returns a random 32 character lowercase hex id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsID reports whether value has the generated id format.
func IsID(value string) bool {
	return idPattern.MatchString(value)
}
