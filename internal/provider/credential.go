package provider

import "errors"

// MinCredentialLength is the shortest key that still counts as configured.
// Keys of this length or shorter are treated as placeholders.
const MinCredentialLength = 10

// ErrNotConfigured is returned by adapters whose credential is missing or too short.
var ErrNotConfigured = errors.New("provider not configured")

// HasCredential reports whether key is long enough to be a real credential.
func HasCredential(key string) bool {
	return len(key) > MinCredentialLength
}
