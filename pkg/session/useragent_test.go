package session

import "testing"

func TestParseBrowser(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0", "Edge"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15", "Safari"},
		{"Mozilla/5.0 AppleWebKit/537.36 Chrome/120.0 Safari/537.36 OPR/106.0", "Opera"},
		{"curl/8.4.0", "curl"},
		{"PostmanRuntime/7.36.0", "Postman"},
		{"", "Unknown"},
		{"SomeBot/1.0", "Other"},
	}

	for _, tt := range tests {
		if got := ParseBrowser(tt.ua); got != tt.want {
			t.Errorf("ParseBrowser(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestParseOS(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "macOS"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", "Android"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", "iOS"},
		{"", "Unknown"},
		{"curl/8.4.0", "Other"},
	}

	for _, tt := range tests {
		if got := ParseOS(tt.ua); got != tt.want {
			t.Errorf("ParseOS(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", "Internal Network"},
		{"10.1.2.3", "Internal Network"},
		{"192.168.0.5", "Internal Network"},
		{"172.16.9.9", "Internal Network"},
		{"::1", "Internal Network"},
		{"8.8.8.8", "Unknown"},
		{"not-an-ip", "Unknown"},
	}

	for _, tt := range tests {
		if got := ResolveLocation(tt.ip); got != tt.want {
			t.Errorf("ResolveLocation(%q) = %q, want %q", tt.ip, got, tt.want)
		}
	}
}
