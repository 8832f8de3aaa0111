package types

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	// UUIDPrefixRequest is used for request IDs attached by middleware.
	UUIDPrefixRequest = "req"
)

// GenerateULID generates a lexicographically sortable unique identifier.
func GenerateULID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), ulid.DefaultEntropy()).String())
}

// GenerateUUIDWithPrefix generates a prefixed unique identifier,
// e.g. req_01h2xcejqtf2nbrexx3vqjhp41.
func GenerateUUIDWithPrefix(prefix string) string {
	id := strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
