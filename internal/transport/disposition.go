package transport

import (
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// dispositionPattern is the fallback for headers mime.ParseMediaType rejects.
var dispositionPattern = regexp.MustCompile(`(?i)filename\*?=(?:UTF-8''|")?([^";]+)`)

// FilenameFromDisposition extracts a download name from a Content-Disposition
// header. It accepts quoted, bare and RFC 5987 (filename*=UTF-8''...) forms.
// The result is reduced to a base name; "" means nothing usable was found.
func FilenameFromDisposition(disposition string) string {
	if strings.TrimSpace(disposition) == "" {
		return ""
	}

	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := cleanFilename(params["filename"]); name != "" {
			return name
		}
	}

	m := dispositionPattern.FindStringSubmatch(disposition)
	if len(m) < 2 {
		return ""
	}
	raw := strings.TrimSpace(strings.ReplaceAll(m[1], `"`, ""))
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return cleanFilename(raw)
}

// Filename returns the server-suggested name or fallback.
func (r *Response) Filename(fallback string) string {
	if name := FilenameFromDisposition(r.Header.Get("Content-Disposition")); name != "" {
		return name
	}
	return fallback
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
