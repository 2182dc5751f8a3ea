package util

import "strings"

// NormalizePath returns the path with dot segments resolved and duplicate
// slashes collapsed, per RFC 3986 section 5.2.4. The result always starts
// with a single "/". An empty input normalizes to "/".
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))

	for _, seg := range segments {
		switch seg {
		case "", ".":
			// skip empty segments (duplicate slashes) and current-dir refs
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	normalized := "/" + strings.Join(out, "/")

	// Preserve a trailing slash when the original path signalled a
	// directory-like reference.
	if normalized != "/" && (strings.HasSuffix(path, "/") ||
		strings.HasSuffix(path, "/.") || strings.HasSuffix(path, "/..")) {
		normalized += "/"
	}

	return normalized
}
