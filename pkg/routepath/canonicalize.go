// Package routepath canonicalizes the mount paths wiki instances are served
// under.
//
// A mount path is the URL prefix of an instance ("/", "/geo", "/wiki/geo").
// The canonical form starts with a slash, has no empty or "." segments, no
// trailing slash (except the root) and no query or fragment:
//
//	p, err := routepath.Canonicalize("/wiki//geo/")  // "/wiki/geo"
//	routepath.Dir(p)                                  // "/wiki/geo/"
//	routepath.Join(p, "/_live")                       // "/wiki/geo/_live"
package routepath

import (
	"errors"
	"strings"
)

// Mount path errors.
var (
	ErrInvalidPath          = errors.New("routepath: path carries a query or fragment")
	ErrBackslashInPath      = errors.New("routepath: path contains backslash")
	ErrNullByteInPath       = errors.New("routepath: path contains null byte")
	ErrInvalidPercentEscape = errors.New("routepath: invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("routepath: path escapes root via ..")
	ErrEncodedSlash         = errors.New("routepath: encoded slash (%2F) in path")
)

// Canonicalize returns the canonical form of a mount path.
//
// Slashes are collapsed, "." segments removed and ".." segments resolved.
// The empty path is the root. Paths with a backslash, a NUL byte, a query
// or fragment, an encoded slash, an invalid percent escape, or a ".." that
// leaves the root are rejected.
func Canonicalize(input string) (string, error) {
	if input == "" {
		return "/", nil
	}
	if strings.ContainsAny(input, "?#") {
		return "", ErrInvalidPath
	}
	if strings.Contains(input, "\\") {
		return "", ErrBackslashInPath
	}
	upper := strings.ToUpper(input)
	if strings.Contains(input, "\x00") || strings.Contains(upper, "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(input, "%") {
		if err := validatePercentEscapes(input); err != nil {
			return "", err
		}
		if strings.Contains(upper, "%2F") {
			return "", ErrEncodedSlash
		}
	}

	var segments []string
	for _, seg := range strings.Split(input, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	return "/" + strings.Join(segments, "/"), nil
}

// Dir returns the URL of the instance mounted at mount: the mount path with
// a trailing slash.
func Dir(mount string) string {
	if strings.HasSuffix(mount, "/") {
		return mount
	}
	return mount + "/"
}

// Join appends rel, a path starting with a slash, to mount.
func Join(mount, rel string) string {
	return strings.TrimSuffix(mount, "/") + rel
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
