// Package strings holds small string helpers shared by the platform packages.
package strings

import (
	"strings"
)

// CompactHosts trims each host:port entry, drops blanks and repeated hosts.
// Hosts compare case-insensitively; the first spelling wins and order is kept.
// A list with nothing left in it comes back nil so callers can test len().
func CompactHosts(values []string) []string {
	var result []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		host := strings.TrimSpace(v)
		if host == "" {
			continue
		}
		key := strings.ToLower(host)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, host)
	}
	return result
}
