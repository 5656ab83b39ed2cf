// Package export renders an objective's conversation transcript as Markdown,
// PDF or DOCX.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts md, markdown, pdf and docx, case-insensitively. Blank
// selects Markdown.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, raw)
	}
}

// Request contains parameters for an export operation
type Request struct {
	UserID        int64
	ObjectiveID   int64
	Format        Format
	IncludeHidden bool
}

// Transcript is the data rendered into every format.
type Transcript struct {
	ProjectTitle         string
	ObjectiveTitle       string
	ObjectiveDescription string
	Tasks                []TranscriptTask
	Messages             []TranscriptMessage
	ExportedAt           time.Time
}

type TranscriptTask struct {
	Position  int
	Title     string
	Completed bool
}

type TranscriptMessage struct {
	Role      string
	Content   string
	ModelUsed string
	Hidden    bool
	CreatedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat is returned for formats other than md, pdf and docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
