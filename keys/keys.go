// Package keys implements the storage key naming policy and the helpers that
// move between keys, URLs and local file names.
package keys

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultPrefix is the top-level prefix every synchronized object lives under.
	DefaultPrefix = "zotero-attachments"

	// Uncategorized is used when a hierarchy label sanitizes to nothing.
	Uncategorized = "uncategorized"

	// Untitled is used when a file name sanitizes to nothing.
	Untitled = "untitled"

	maxFileNameLength = 200
	maxFilePathLength = 250
)

var (
	hierarchyInvalid = regexp.MustCompile(`[<>:"|?*]`)
	repeatedSlashes  = regexp.MustCompile(`/+`)
	itemIDPrefix     = regexp.MustCompile(`^\d+-(.+)$`)
	fileNameInvalid  = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedUnders   = regexp.MustCompile(`_+`)
	edgeDotsSpaces   = regexp.MustCompile(`^[.\s]+|[.\s]+$`)
	reservedName     = regexp.MustCompile(`(?i)^(CON|PRN|AUX|NUL|COM[1-9]|LPT[1-9])$`)
	driveLetter      = regexp.MustCompile(`^[A-Za-z]:$`)
	windowsPath      = regexp.MustCompile(`^[A-Za-z]:[/\\]`)
	separators       = regexp.MustCompile(`[/\\]+`)
)

// Namer maps an item identifier and file name to a storage key.
// The zero value uses DefaultPrefix and date grouping.
type Namer struct {
	// Prefix is the synchronization prefix; DefaultPrefix when empty
	Prefix string

	// UseHierarchy groups keys by the caller supplied hierarchy label
	// instead of the upload date
	UseHierarchy bool

	// Now returns the current time; time.Now when nil
	Now func() time.Time
}

// Generate returns {prefix}/{group}/{itemID}-{fileName}. The group is the
// sanitized hierarchy when UseHierarchy is set and the UTC date otherwise.
func (n Namer) Generate(itemID int64, fileName, hierarchy string) string {
	var group string
	if n.UseHierarchy {
		group = SanitizeHierarchy(hierarchy)
	} else {
		now := time.Now
		if n.Now != nil {
			now = n.Now
		}
		group = now().UTC().Format(time.DateOnly)
	}
	return fmt.Sprintf("%s/%s/%d-%s", n.prefix(), group, itemID, fileName)
}

// SyncPrefix returns the listing prefix covering every key the namer produces.
func (n Namer) SyncPrefix() string {
	return n.prefix() + "/"
}

func (n Namer) prefix() string {
	if n.Prefix == "" {
		return DefaultPrefix
	}
	return strings.Trim(n.Prefix, "/")
}

// SanitizeHierarchy makes a "parent/child" label safe for use inside a key.
func SanitizeHierarchy(hierarchy string) string {
	s := hierarchyInvalid.ReplaceAllString(hierarchy, "_")
	s = repeatedSlashes.ReplaceAllString(s, "/")
	s = strings.Trim(s, "/")
	if s == "" {
		return Uncategorized
	}
	return s
}

// ExtractFileName returns the last key segment without its item ID prefix.
func ExtractFileName(key string) string {
	last := path.Base("/" + key)
	if last == "/" {
		return ""
	}
	if m := itemIDPrefix.FindStringSubmatch(last); m != nil {
		return m[1]
	}
	return last
}

// SanitizeFileName makes name safe to create on any common filesystem.
func SanitizeFileName(name string) string {
	if strings.TrimSpace(name) == "" {
		return Untitled
	}
	if driveLetter.MatchString(name) {
		return name
	}

	s := fileNameInvalid.ReplaceAllString(name, "_")
	s = strings.Map(func(r rune) rune {
		if r <= 0x1f {
			return '_'
		}
		return r
	}, s)
	s = repeatedUnders.ReplaceAllString(s, "_")
	s = edgeDotsSpaces.ReplaceAllString(s, "")
	if reservedName.MatchString(s) {
		s = "_" + s
	}
	if s == "" {
		s = Untitled
	}
	return truncateFileName(s)
}

func truncateFileName(s string) string {
	if utf8.RuneCountInString(s) <= maxFileNameLength {
		return s
	}
	runes := []rune(s)
	ext := -1
	for i := len(runes) - 1; i > 0; i-- {
		if runes[i] == '.' {
			ext = i
			break
		}
	}
	if ext <= 0 {
		return string(runes[:maxFileNameLength])
	}
	extension := runes[ext:]
	keep := maxFileNameLength - len(extension)
	if keep < 0 {
		keep = 0
	}
	if keep > ext {
		keep = ext
	}
	return string(runes[:keep]) + string(extension)
}

// SafeFileName derives a local file name from a key, falling back to
// fallback and finally to a timestamped name.
func SafeFileName(key, fallback string) string {
	if s := SanitizeFileName(ExtractFileName(key)); s != Untitled {
		return s
	}
	if fallback != "" {
		return SanitizeFileName(fallback)
	}
	ext := "pdf"
	if i := strings.LastIndex(key, "."); i >= 0 && i < len(key)-1 {
		ext = key[i+1:]
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("download_%s.%s", stamp, ext)
}

// SanitizeFilePath sanitizes every segment of a Unix or Windows path,
// dropping empty segments and keeping the root or drive letter.
func SanitizeFilePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty file path")
	}

	var out string
	if windowsPath.MatchString(p) {
		parts := sanitizeSegments(separators.Split(p[2:], -1))
		out = p[:2] + `\` + strings.Join(parts, `\`)
	} else {
		parts := sanitizeSegments(separators.Split(p, -1))
		out = strings.Join(parts, "/")
		if strings.HasPrefix(p, "/") {
			out = "/" + out
		}
	}

	if n := utf8.RuneCountInString(out); n > maxFilePathLength {
		return "", fmt.Errorf("file path too long (%d characters)", n)
	}
	return out, nil
}

func sanitizeSegments(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, SanitizeFileName(part))
	}
	return out
}

// EncodeForURL percent-encodes each "/" delimited segment of key.
func EncodeForURL(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// DecodeFromURL reverses EncodeForURL. Undecodable input is returned unchanged.
func DecodeFromURL(encoded string) string {
	parts := strings.Split(encoded, "/")
	for i, part := range parts {
		decoded, err := url.PathUnescape(part)
		if err != nil {
			return encoded
		}
		parts[i] = decoded
	}
	return strings.Join(parts, "/")
}
