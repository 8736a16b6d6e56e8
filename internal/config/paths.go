package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// expandPath expands a leading ~ and environment variables in p. On Windows
// %VAR% references and a ~\ prefix are expanded as well.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		p = expandPercentVars(p)
	}

	rest, ok := cutHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// cutHome strips a leading "~" or "~/" (and "~\" on Windows).
func cutHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return rest, true
	}
	if runtime.GOOS == "windows" {
		if rest, ok := strings.CutPrefix(p, `~\`); ok {
			return rest, true
		}
	}
	return "", false
}

// expandPercentVars replaces %NAME% with the value of NAME. Unknown or empty
// names are left as written.
func expandPercentVars(p string) string {
	var b strings.Builder
	for {
		before, after, found := strings.Cut(p, "%")
		b.WriteString(before)
		if !found {
			return b.String()
		}
		name, tail, closed := strings.Cut(after, "%")
		if !closed {
			b.WriteString("%" + after)
			return b.String()
		}
		if val, ok := os.LookupEnv(name); ok && name != "" {
			b.WriteString(val)
			p = tail
			continue
		}
		if name == "" {
			b.WriteString("%")
			p = after
			continue
		}
		b.WriteString("%" + name + "%")
		p = tail
	}
}
