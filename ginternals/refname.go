package ginternals

import "strings"

// IsRefNameValid returns whether the given name can be used as a
// reference name.
// The rules mirror git-check-ref-format: no leading dot, no "..",
// no trailing "/", no ".lock" suffix, no "@{", and none of the
// reserved or control characters
func IsRefNameValid(name string) bool {
	if name == "" || name == "/" || name[len(name)-1] == '/' || name[len(name)-1] == '.' {
		return false
	}

	for i, c := range name {
		if c < 32 || c == 127 {
			return false
		}
		switch c {
		case '*', '?', '~', ':', '^', '[', '\\', ' ':
			return false
		}
		if i < len(name)-1 {
			substr := name[i : i+2]
			if substr == "@{" || substr == ".." {
				return false
			}
		}
	}

	for _, s := range strings.Split(name, "/") {
		if s == "" || s[0] == '.' || s[len(s)-1] == '.' || strings.HasSuffix(s, ".lock") {
			return false
		}
	}

	return true
}
