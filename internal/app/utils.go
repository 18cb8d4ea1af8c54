package app

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// descriptionLimit is the number of user-perceived characters shown for a
// video description in listings and links.
const descriptionLimit = 1000

func mustEnsureDirs(cfg Config) {
	_ = os.MkdirAll(cfg.BaseDir, 0755)
	_ = os.MkdirAll(cfg.JournalDir, 0755)
	_ = os.MkdirAll(cfg.ArchiveDir, 0755)
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
}

// normalizeKey lowercases s and collapses all whitespace runs into a single
// space. Catalog topics and quiz bank keys are compared in this form.
func normalizeKey(s string) string {
	s = strings.ReplaceAll(s, "　", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// truncateGraphemes cuts s to at most limit grapheme clusters and appends
// "..." when something was cut. Emoji and combining marks stay intact.
func truncateGraphemes(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || s == "" {
		return s
	}
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s
	}

	var b strings.Builder
	gr := uniseg.NewGraphemes(s)
	for n := 0; n < limit && gr.Next(); n++ {
		b.WriteString(gr.Str())
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace) + "..."
}

// sanitizeUTF8 drops invalid bytes and control characters (keeping newlines
// and tabs) and squeezes runs of spaces, so journal lines and prompts stay
// clean.
func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
