package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// LicenseKeyPattern matches the canonical license key format: two
// 32-character upper-case hex segments joined by a hyphen.
var LicenseKeyPattern = regexp.MustCompile(`^[0-9A-F]{32}-[0-9A-F]{32}$`)

// GenerateLicenseKey returns a new high-entropy license key. Both
// segments derive from crypto/rand, so collisions are cryptographically
// negligible and keys carry no sequential or timestamp information.
func GenerateLicenseKey() string {
	return strings.ToUpper(randomHex(16) + "-" + randomHex(16))
}

// GenerateEmailToken returns a random token for email verification links.
func GenerateEmailToken() string {
	return randomHex(32)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a broken
		// entropy source is not something we can continue from.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
