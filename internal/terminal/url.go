package terminal

import (
	"fmt"
	"strings"
)

// PublicURL builds the login URL a terminal opens. The tenant domain wins
// over the site URL; with neither, the bare path is returned.
func PublicURL(siteURL, tenantDomain string, tenantID uint, deviceID string) string {
	path := fmt.Sprintf("/pos/tenants/%d/devices/%s/login/", tenantID, deviceID)

	base := ""
	switch {
	case tenantDomain != "":
		base = tenantDomain
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			base = "https://" + base
		}
	case siteURL != "":
		base = siteURL
	}
	base = strings.TrimRight(base, "/")

	scheme := ""
	if i := strings.Index(base, "://"); i >= 0 {
		scheme, base = base[:i+3], base[i+3:]
	}
	joined := base + path
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	return scheme + joined
}
