// Package record turns raw CSV rows into canonical institution records.
package record

import (
	"strings"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// truthyTokens are the source values that mean active under ActiveFromSource.
var truthyTokens = map[string]struct{}{
	"t": {}, "true": {}, "1": {}, "yes": {}, "y": {},
}

// Whitespace is every rune unicode.IsSpace accepts. Go trims with it and the
// staging reconcile statement passes it to BTRIM, so both transports agree.
const Whitespace = " \t\n\v\f\r\u0085\u00a0\u1680" +
	"\u2000\u2001\u2002\u2003\u2004\u2005\u2006\u2007\u2008\u2009\u200a" +
	"\u2028\u2029\u202f\u205f\u3000"

// Trim removes leading and trailing Whitespace.
func Trim(s string) string {
	return strings.Trim(s, Whitespace)
}

// Options controls normalization.
type Options struct {
	// MissingToken is treated like an empty string. Empty disables it.
	MissingToken string
	// ActivePolicy decides the active flag.
	ActivePolicy pgload.ActivePolicy
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MissingToken: pgload.DefaultMissingToken,
		ActivePolicy: pgload.ActiveAlways,
	}
}

// Normalize trims s and returns nil when the result is empty or the missing token.
func Normalize(s, missingToken string) *string {
	v := Trim(s)
	if v == "" || (missingToken != "" && v == missingToken) {
		return nil
	}
	return &v
}

// ParseActive reports whether value is one of t, true, 1, yes, y (case-insensitive).
func ParseActive(value string) bool {
	_, ok := truthyTokens[strings.ToLower(Trim(value))]
	return ok
}

// Clean normalizes raw and reports whether it carries name, city and state.
// Records with ok == false must not be persisted.
func Clean(raw pgload.RawInstitution, opts Options) (pgload.Institution, bool) {
	name := Normalize(raw.Name, opts.MissingToken)
	city := Normalize(raw.City, opts.MissingToken)
	state := Normalize(raw.State, opts.MissingToken)
	if name == nil || city == nil || state == nil {
		return pgload.Institution{}, false
	}

	active := true
	if opts.ActivePolicy == pgload.ActiveFromSource {
		active = ParseActive(raw.Active)
	}

	return pgload.Institution{
		Name:             *name,
		TypeNorm:         Normalize(raw.TypeNorm, opts.MissingToken),
		SourceType:       Normalize(raw.SourceType, opts.MissingToken),
		City:             *city,
		State:            *state,
		Ownership:        Normalize(raw.Ownership, opts.MissingToken),
		Clues:            Normalize(raw.Clues, opts.MissingToken),
		InstitutionGroup: Normalize(raw.InstitutionGroup, opts.MissingToken),
		Phone1:           Normalize(raw.Phone1, opts.MissingToken),
		Phone2:           Normalize(raw.Phone2, opts.MissingToken),
		RFC:              Normalize(raw.RFC, opts.MissingToken),
		Active:           active,
	}, true
}

// CleanAll cleans every row of batch and returns the valid records together
// with the number of rows dropped.
func CleanAll(batch []pgload.RawInstitution, opts Options) ([]pgload.Institution, int) {
	out := make([]pgload.Institution, 0, len(batch))
	skipped := 0
	for _, raw := range batch {
		inst, ok := Clean(raw, opts)
		if !ok {
			skipped++
			continue
		}
		out = append(out, inst)
	}
	return out, skipped
}
