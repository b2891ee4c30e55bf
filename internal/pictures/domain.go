// Package pictures attaches image evidence to requests.
package pictures

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Audit texts written to request_logs.
const (
	LogAdded   = "Imagen agregada a la solicitud"
	LogRemoved = "Imagen eliminada de la solicitud"
)

// DefaultMaxBytes caps uploads when no limit is configured.
const DefaultMaxBytes int64 = 10 << 20

// Picture is one stored image of a request.
type Picture struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"requestId"`
	PictureURL  string    `json:"pictureUrl"`
	DateCreated time.Time `json:"dateCreated"`
}

// File returns the stored file name referenced by the picture url.
func (p Picture) File() string {
	return p.PictureURL[strings.LastIndexByte(p.PictureURL, '/')+1:]
}

// Upload is an incoming image.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// PictureURL is the public path serving file for requestID.
func PictureURL(requestID int64, file string) string {
	return fmt.Sprintf("/api/requests/%d/pictures/%s", requestID, file)
}

// Extension returns the lowercased extension of filename, "jpg" when absent
// or not alphanumeric.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || len(ext) > 8 {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}

// ContentType maps a stored file name to the content type it is served with.
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// ValidFileName rejects empty names, traversal and path separators.
func ValidFileName(file string) bool {
	if file == "" || file == "." || file == ".." {
		return false
	}
	return !strings.ContainsAny(file, `/\`) && !strings.Contains(file, "..")
}
