package routepath

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"root", "/", "/"},
		{"empty string", "", "/"},
		{"simple", "/geo", "/geo"},
		{"trailing slash", "/geo/", "/geo"},
		{"no leading slash", "geo", "/geo"},
		{"collapse slashes", "/wiki//geo", "/wiki/geo"},
		{"dot segment", "/wiki/./geo", "/wiki/geo"},
		{"dot dot segment", "/wiki/old/../geo", "/wiki/geo"},
		{"only slashes", "///", "/"},
		{"valid escape", "/caf%C3%A9", "/caf%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if err != nil {
				t.Fatalf("Canonicalize(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"query", "/geo?x=1", ErrInvalidPath},
		{"fragment", "/geo#top", ErrInvalidPath},
		{"backslash", "/wiki\\geo", ErrBackslashInPath},
		{"null byte", "/geo\x00", ErrNullByteInPath},
		{"encoded null", "/geo%00", ErrNullByteInPath},
		{"bad escape", "/geo%GG", ErrInvalidPercentEscape},
		{"truncated escape", "/geo%2", ErrInvalidPercentEscape},
		{"encoded slash", "/wiki%2fgeo", ErrEncodedSlash},
		{"escapes root", "/../secret", ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestDirAndJoin(t *testing.T) {
	if got := Dir("/geo"); got != "/geo/" {
		t.Errorf("Dir(/geo) = %q", got)
	}
	if got := Dir("/"); got != "/" {
		t.Errorf("Dir(/) = %q", got)
	}
	if got := Join("/geo", "/_live"); got != "/geo/_live" {
		t.Errorf("Join(/geo, /_live) = %q", got)
	}
	if got := Join("/", "/_live"); got != "/_live" {
		t.Errorf("Join(/, /_live) = %q", got)
	}
}
