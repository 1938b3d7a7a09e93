package sources

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a tracked source document.
type Status string

const (
	// StatusUploading means the file transfer is in progress.
	StatusUploading Status = "uploading"
	// StatusIndexing means the upload succeeded and the backend is ingesting
	// the document. The backend gives no signal for this phase; it ends via
	// the post-upload document check.
	StatusIndexing Status = "indexing"
	// StatusReady means the document is queryable.
	StatusReady Status = "ready"
	// StatusError means the upload failed. Nothing leaves this state
	// automatically.
	StatusError Status = "error"
)

// Default category assigned to new sources.
const CategoryOther = "other"

// Categories the sidebar can filter by, besides "all".
var Categories = []string{"regulation", "manual", "report", CategoryOther}

// Source is one ingested document tracked client-side. ID is generated
// locally and never assumed to match any backend identity; reconciliation
// against the server's list is keyed by Filename instead.
type Source struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	SizeBytes  int64
	Status     Status
	// Progress is the upload percentage, meaningful only while uploading.
	Progress int
	Category string
}

// acceptedExtensions gates what may be uploaded; anything else is silently
// dropped from a batch.
var acceptedExtensions = map[string]struct{}{
	".txt": {},
	".pdf": {},
	".csv": {},
	".md":  {},
}

// Accepted reports whether the file's extension is in the accepted set.
func Accepted(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := acceptedExtensions[ext]
	return ok
}

// FileTypeLabel returns the short badge text for a filename.
func FileTypeLabel(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "TXT"
	case ".pdf":
		return "PDF"
	case ".csv":
		return "CSV"
	case ".md":
		return "MD"
	default:
		return "FILE"
	}
}

// FormatSize renders a byte count for the sidebar.
func FormatSize(bytes int64) string {
	switch {
	case bytes <= 0:
		return ""
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
