package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// IDRandomBytes is the number of random bytes in a session ID.
	IDRandomBytes = 32
	// IDPrefix starts every session ID.
	IDPrefix = "sess"
)

var randomPartPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewID returns a session ID of the form sess.<unix seconds>.<random>,
// where random is base64url without padding.
func NewID() (string, error) {
	buf := make([]byte, IDRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", &Error{Code: CodeGeneration, Message: "failed to read random bytes", Cause: err}
	}
	return fmt.Sprintf("%s.%d.%s", IDPrefix, time.Now().Unix(), base64.RawURLEncoding.EncodeToString(buf)), nil
}

// ValidateID checks the format of a session ID without looking it up.
func ValidateID(id string) error {
	if id == "" {
		return errInvalid("empty session ID")
	}

	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return errInvalid("malformed session ID")
	}
	if parts[0] != IDPrefix {
		return errInvalid("unknown session ID prefix")
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return errInvalid("bad timestamp in session ID")
	}
	if !randomPartPattern.MatchString(parts[2]) {
		return errInvalid("bad characters in session ID")
	}
	if len(parts[2]) < base64.RawURLEncoding.EncodedLen(IDRandomBytes) {
		return errInvalid("session ID too short")
	}
	return nil
}

// IssuedAt returns the creation time encoded in a session ID.
func IssuedAt(id string) (time.Time, error) {
	if err := ValidateID(id); err != nil {
		return time.Time{}, err
	}
	secs, _ := strconv.ParseInt(strings.Split(id, ".")[1], 10, 64)
	return time.Unix(secs, 0), nil
}
