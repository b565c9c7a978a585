package services

import (
	"encoding/json"
	"net/mail"
	"sort"
	"strings"

	"github.com/isdelr/task-manager-be/internal/errs"
)

// Fields is a partially decoded JSON object body. Values stay raw until the
// key set has been checked, so a bad key rejects the request before any
// value is looked at.
type Fields map[string]json.RawMessage

func (f Fields) checkAllowed(allowed ...string) error {
	var invalid []string
	for key := range f {
		if !contains(allowed, key) {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return errs.Validation("invalid updates: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f Fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Fields) stringValue(key string) (string, error) {
	var s *string
	if err := json.Unmarshal(f[key], &s); err != nil || s == nil {
		return "", errs.Validation("%s must be a string", key)
	}
	return *s, nil
}

// boolValue accepts only a JSON true or false. Strings such as "true" are rejected.
func (f Fields) boolValue(key string) (bool, error) {
	var b *bool
	if err := json.Unmarshal(f[key], &b); err != nil || b == nil {
		return false, errs.Validation("%s must be a boolean", key)
	}
	return *b, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("name is required")
	}
	return name, nil
}

// normalizeEmail trims and lower-cases the address and checks that it is a
// bare addr-spec with a dotted domain.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.Validation("email is invalid")
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", errs.Validation("email is invalid")
	}
	return email, nil
}
