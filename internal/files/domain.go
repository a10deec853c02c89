// Package files stores uploaded media. Metadata lives in the file table and
// content in a storage.Store keyed by the file uid.
package files

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is the metadata of one stored object.
type File struct {
	UID       uuid.UUID `json:"uid"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Location  string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload describes new content for a file.
type Upload struct {
	Filename    string
	ContentType string
}

// MaxList caps listings.
const MaxList = 1024

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

var allowedMime = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/svg+xml":   true,
	"application/pdf": true,
	"text/plain":      true,
}

// DetectMime resolves the stored mime type from the filename extension,
// falling back to the declared content type. It returns "" for anything
// outside the accepted set.
func DetectMime(filename, declared string) string {
	if m, ok := mimeByExt[strings.ToLower(path.Ext(filename))]; ok {
		return m
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if allowedMime[declared] {
		return declared
	}
	return ""
}
