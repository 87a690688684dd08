package cx

import "strings"

// IsFolderIgnored reports whether a directory is excluded. It matches when
// name equals an ignored entry, or when any segment of relativePath does.
// relativePath uses forward slashes.
func IsFolderIgnored(name, relativePath string, ignoredFolders []string) bool {
	if len(ignoredFolders) == 0 {
		return false
	}
	segments := strings.Split(relativePath, "/")
	for _, ignored := range ignoredFolders {
		if name == ignored {
			return true
		}
		for _, segment := range segments {
			if segment == ignored {
				return true
			}
		}
	}
	return false
}

// IsFileIgnored reports whether a file is excluded. It matches when name
// equals an ignored file entry, when the file's extension is listed in
// ignoredFileTypes, or when relativePath contains an ignored file entry
// anywhere as a substring.
func IsFileIgnored(name, relativePath string, ignoredFiles, ignoredFileTypes []string) bool {
	for _, ignored := range ignoredFiles {
		if name == ignored {
			return true
		}
	}

	if len(ignoredFileTypes) > 0 {
		ext := Extension(name)
		for _, ignored := range ignoredFileTypes {
			if ext == ignored {
				return true
			}
		}
	}

	// Substring match against the whole path, so "secrets" also hides
	// "config/secrets/prod.json".
	for _, ignored := range ignoredFiles {
		if strings.Contains(relativePath, ignored) {
			return true
		}
	}
	return false
}

// Extension returns the extension of name from the final dot inclusive.
// Names without a dot, dotfiles such as ".env", and ".." have no extension.
// A trailing dot yields ".".
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == ".." {
		return ""
	}
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i:]
}

// NormalizeFileTypes returns types with a dot-prefixed form added for every
// entry that lacks one, so "log" also matches ".log". Order is preserved
// and duplicates are dropped.
func NormalizeFileTypes(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(types)*2)
	out := make([]string, 0, len(types)*2)
	add := func(s string) {
		if seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, t := range types {
		add(t)
		if t != "" && !strings.HasPrefix(t, ".") {
			add("." + t)
		}
	}
	return out
}

// RuleMatcher applies one rule set to directory entries.
type RuleMatcher struct {
	rules *CodebaseRules
}

// NewRuleMatcher returns a matcher for rules. A nil rule set ignores nothing.
func NewRuleMatcher(rules *CodebaseRules) *RuleMatcher {
	if rules == nil {
		rules = &CodebaseRules{}
	}
	return &RuleMatcher{rules: rules}
}

// FolderIgnored reports whether the directory at relativePath is excluded.
func (m *RuleMatcher) FolderIgnored(name, relativePath string) bool {
	return IsFolderIgnored(name, relativePath, m.rules.IgnoredFolders)
}

// FileIgnored reports whether the file at relativePath is excluded.
func (m *RuleMatcher) FileIgnored(name, relativePath string) bool {
	return IsFileIgnored(name, relativePath, m.rules.IgnoredFiles, m.rules.IgnoredFileTypes)
}
