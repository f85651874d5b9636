// Package contenttype guesses MIME types for local files and applies the
// content-type ignore list.
package contenttype

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
)

// Default is returned when nothing better is known.
const Default = "application/octet-stream"

// sniffLen is how many leading bytes are read for content detection.
const sniffLen = 512

var extensions = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
	"html": "text/html",
	"xml":  "application/xml",
	"zip":  "application/zip",
	"rar":  "application/x-rar-compressed",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
}

// Guesser resolves content types. The extension table always wins so the
// same file maps to the same type whether or not it is readable; the
// stdlib mime table and content sniffing only fill gaps.
type Guesser struct {
	// Filesystem enables content sniffing when set
	Filesystem billy.Filesystem

	// Ignore lists lowercase content types that must not be uploaded
	Ignore []string
}

// Guess returns the MIME type for filePath.
func (g *Guesser) Guess(filePath string) string {
	if ct := FromExtension(filePath); ct != Default {
		return ct
	}
	if ext := strings.ToLower(path.Ext(baseName(filePath))); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	if g != nil && g.Filesystem != nil {
		if ct := g.sniff(filePath); ct != "" {
			return ct
		}
	}
	return Default
}

func (g *Guesser) sniff(filePath string) string {
	f, err := g.Filesystem.Open(filePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, _ := f.Read(buf)
	if n == 0 {
		return ""
	}
	if mt := mimetype.Detect(buf[:n]); mt != nil && mt.String() != Default {
		return mt.String()
	}
	return ""
}

// ShouldIgnore reports whether filePath's extension-derived type is on the ignore list.
func (g *Guesser) ShouldIgnore(filePath string) bool {
	if g == nil || len(g.Ignore) == 0 {
		return false
	}
	ct := strings.ToLower(FromExtension(filePath))
	for _, ignored := range g.Ignore {
		if ignored == ct {
			return true
		}
	}
	return false
}

// FromExtension looks filePath up in the built-in extension table only.
func FromExtension(filePath string) string {
	name := baseName(filePath)
	i := strings.LastIndex(name, ".")
	ext := strings.ToLower(name[i+1:])
	if ct, ok := extensions[ext]; ok {
		return ct
	}
	return Default
}

// ParseIgnoreList parses a newline separated list of content types.
func ParseIgnoreList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out
}

// baseName handles both Unix and Windows separators.
func baseName(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
