// Package export renders generated documents to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat accepts "pdf" and "docx" in any case.
func ParseFormat(value string) (Format, bool) {
	switch Format(lower(value)) {
	case FormatPDF:
		return FormatPDF, true
	case FormatDOCX:
		return FormatDOCX, true
	default:
		return "", false
	}
}

// Request carries everything needed to render one document.
type Request struct {
	Format       Format
	Title        string
	MatterTitle  string
	ClientName   string
	DocumentType string
	Author       string
	UpdatedAt    time.Time
	Version      string
	Content      string
}

type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat     = errors.New("unsupported export format")
	ErrPDFDependencyMissing  = errors.New("export pdf dependency missing")
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
