package vfs

import "strings"

/// IsAbsolute reports whether p starts with "/" (spec §4.11 step 1).
func IsAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

/// LongestPrefixMatch returns whichever of mountPaths is the longest
/// path-component prefix of abs, or "" with ok=false if none matches
/// (spec §4.11 step 2; grounded on the original kernel's
/// path::longest_prefix_match, which the VFS mount table resolver
/// calls before anything else).
func LongestPrefixMatch(abs string, mountPaths []string) (string, bool) {
	best := ""
	found := false
	for _, m := range mountPaths {
		if !isPrefixBoundary(abs, m) {
			continue
		}
		if len(m) > len(best) {
			best = m
			found = true
		}
	}
	return best, found
}

// isPrefixBoundary reports whether mount is a path-component prefix of
// abs: either an exact match, or mount followed immediately by "/" (so
// "/mnt" does not spuriously match "/mnt2").
func isPrefixBoundary(abs, mount string) bool {
	if mount == "/" {
		return true
	}
	if abs == mount {
		return true
	}
	return strings.HasPrefix(abs, mount) && strings.HasPrefix(abs[len(mount):], "/")
}

/// StripMountPrefix removes mount from the front of abs, returning the
/// residual path with any leading slash trimmed.
func StripMountPrefix(abs, mount string) string {
	rest := abs
	if mount != "/" {
		rest = strings.TrimPrefix(abs, mount)
	}
	return strings.TrimPrefix(rest, "/")
}

/// Components splits a residual path into its non-empty,
/// non-"."-skipping components (spec §4.11 step 4: "skipping empty and
/// .").
func Components(p string) []string {
	var out []string
	for _, c := range strings.Split(p, "/") {
		if c == "" || c == "." {
			continue
		}
		out = append(out, c)
	}
	return out
}

/// Join concatenates a directory and a single path component into an
/// absolute path, used when a symlink target is itself relative.
func Join(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
