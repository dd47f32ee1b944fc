package tenant

import (
	"regexp"
	"strings"

	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// Subdomains are DNS labels: lowercase alphanumerics and hyphens, no leading
// or trailing hyphen, at most 63 characters.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const maxSubdomainLength = 63

// NormalizeSubdomain lowercases and trims a candidate without validating it.
func NormalizeSubdomain(candidate string) string {
	return strings.ToLower(strings.TrimSpace(candidate))
}

// ValidateSubdomain rejects syntactically unusable subdomains. Reserved-name
// checks are the resolver's concern; this is pure syntax.
func ValidateSubdomain(candidate string) error {
	normalized := NormalizeSubdomain(candidate)
	if normalized == "" || len(normalized) > maxSubdomainLength || !subdomainPattern.MatchString(normalized) {
		return serrors.NewMalformedSubdomainError(candidate)
	}
	return nil
}
