package export

import (
	"context"
	"fmt"
	"strings"
)

type converter func(ctx context.Context, j job) (*Result, error)

// job is one rendered document on its way to a converter.
type job struct {
	html   string
	title  string
	author string
	stem   string
	paper  paper
}

// paper is a page size in inches. Court filings get a wider left margin for binding.
type paper struct {
	width, height float64
	leftMargin    float64
}

var (
	paperLetter = paper{width: 8.5, height: 11, leftMargin: 1}
	paperLegal  = paper{width: 8.5, height: 14, leftMargin: 1.5}
)

func paperFor(documentType string) paper {
	switch strings.ToUpper(strings.TrimSpace(documentType)) {
	case "PLEADING", "MOTION", "COMPLAINT", "BRIEF":
		return paperLegal
	default:
		return paperLetter
	}
}

// Service turns draft text into downloadable files.
type Service struct {
	pdf  converter
	docx converter
}

func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX}
}

func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:        req.Title,
		MatterTitle:  req.MatterTitle,
		ClientName:   req.ClientName,
		DocumentType: req.DocumentType,
		Author:       req.Author,
		UpdatedAt:    req.UpdatedAt,
		Version:      shortVersion(req.Version),
		ContentHTML:  TextToHTML(req.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	j := job{
		html:   html,
		title:  req.Title,
		author: req.Author,
		stem:   fileStem(req.MatterTitle, req.Title, shortVersion(req.Version)),
		paper:  paperFor(req.DocumentType),
	}
	switch req.Format {
	case FormatPDF:
		return s.pdf(ctx, j)
	case FormatDOCX:
		return s.docx(ctx, j)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

const maxStemLen = 80

// fileStem joins matter, title and version into an ASCII filename stem,
// e.g. "Roe-v-Acme_Demand-Letter_abc1234".
func fileStem(matter, title, version string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{matter, title, version} {
		if cleaned := slug(part); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	stem := strings.Join(parts, "_")
	if len(stem) > maxStemLen {
		stem = strings.TrimRight(stem[:maxStemLen], "-_")
	}
	if stem == "" {
		return "document"
	}
	return stem
}

func slug(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func shortVersion(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
