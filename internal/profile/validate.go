package profile

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name can be used as a profile directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match %s", name, nameRegexp)
	}
	return nil
}

// ValidateAccount checks that account is a bare JID (local@domain, no
// resource). Accounts scope every conversation key of a profile.
func ValidateAccount(account string) error {
	local, domain, ok := strings.Cut(account, "@")
	switch {
	case !ok || local == "" || domain == "":
		return fmt.Errorf("invalid account %q: want local@domain", account)
	case strings.ContainsAny(account, "/ \t"):
		return fmt.Errorf("invalid account %q: must be a bare JID", account)
	case strings.Contains(domain, "@"):
		return fmt.Errorf("invalid account %q: more than one @", account)
	}
	return nil
}
