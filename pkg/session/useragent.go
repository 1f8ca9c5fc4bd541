package session

import (
	"net"
	"strings"
)

// ParseBrowser extracts a coarse browser family from a User-Agent header.
// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
func ParseBrowser(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "curl"):
		return "curl"
	case strings.Contains(ua, "postman"):
		return "Postman"
	default:
		return "Other"
	}
}

// ParseOS extracts a coarse operating system from a User-Agent header
func ParseOS(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Other"
	}
}

// ResolveLocation maps an IP to a coarse location label. Private and loopback
// addresses resolve to the internal network; everything else stays
// unresolved, there is no geo database in this service.
func ResolveLocation(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "Unknown"
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return "Internal Network"
	}
	return "Unknown"
}
