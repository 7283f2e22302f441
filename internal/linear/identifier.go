package linear

import (
	"regexp"
	"strconv"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-([0-9]+)$`)

// IssueRef is a parsed issue identifier such as "SRE-152".
type IssueRef struct {
	TeamKey string
	Number  int
}

// String returns the canonical identifier.
func (r IssueRef) String() string {
	return r.TeamKey + "-" + strconv.Itoa(r.Number)
}

// ParseIdentifier splits an identifier into its team key and number.
// The team key is upper-cased.
func ParseIdentifier(identifier string) (IssueRef, error) {
	m := identifierPattern.FindStringSubmatch(strings.TrimSpace(identifier))
	if m == nil {
		return IssueRef{}, NewInvalidArgumentError("invalid issue identifier %q: expected <TEAM>-<number>", identifier)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return IssueRef{}, NewInvalidArgumentError("invalid issue identifier %q: number must be a positive integer", identifier)
	}
	return IssueRef{TeamKey: strings.ToUpper(m[1]), Number: n}, nil
}
