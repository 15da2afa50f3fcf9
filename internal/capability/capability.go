// Package capability defines the closed permission model for scoped tokens.
// Two capabilities are grantable; two are permanently denied no matter what
// any app configuration says. The denylist is applied after intersecting a
// request with the configured allow-list so a poisoned config row can never
// widen a token.
package capability

import (
	"sort"
	"strings"
)

type Capability string

const (
	Ask    Capability = "ask"
	Upload Capability = "upload"
)

// Denied capabilities can never be granted. They are named here only so the
// validator can strip them; no constructor in this package produces them.
const (
	deniedListFiles    = "list_files"
	deniedDownloadFile = "download_file"
)

// scopeAliases maps OAuth scope strings to capabilities.
var scopeAliases = map[string]Capability{
	"chat.query":  Ask,
	"chat.upload": Upload,
	"ask":         Ask,
	"upload":      Upload,
}

func denied(name string) bool {
	return name == deniedListFiles || name == deniedDownloadFile
}

// Parse maps a raw capability or scope string to a Capability. Unknown and
// denied names both come back ok=false; callers cannot distinguish them,
// and do not need to.
func Parse(s string) (Capability, bool) {
	c, ok := scopeAliases[strings.TrimSpace(s)]
	return c, ok
}

// ParseScope splits a space-separated OAuth scope string into the
// capabilities it names, dropping anything unknown or denied.
func ParseScope(scope string) []Capability {
	var out []Capability
	for _, f := range strings.Fields(scope) {
		if c, ok := Parse(f); ok && !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Validate intersects the requested capabilities with the configured
// allow-list, then unconditionally strips denied names from the result.
// The second filter is redundant for values built through Parse, and stays
// anyway: the allow-list comes from a mutable config row.
func Validate(requested []Capability, allowed []string) []Capability {
	allowSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowSet[strings.TrimSpace(a)] = true
	}

	var out []Capability
	for _, r := range requested {
		name := string(r)
		if denied(name) {
			continue
		}
		if allowSet[name] && !contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// ScopeString renders capabilities back into the OAuth scope form.
func ScopeString(caps []Capability) string {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		switch c {
		case Ask:
			names = append(names, "chat.query")
		case Upload:
			names = append(names, "chat.upload")
		}
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// Names returns the bare capability names for persistence.
func Names(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

// FromNames parses stored capability names, dropping anything that is no
// longer grantable.
func FromNames(names []string) []Capability {
	var out []Capability
	for _, n := range names {
		if c, ok := Parse(n); ok && !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(caps []Capability, c Capability) bool {
	for _, x := range caps {
		if x == c {
			return true
		}
	}
	return false
}

// Has reports whether caps includes c.
func Has(caps []Capability, c Capability) bool {
	return contains(caps, c)
}
