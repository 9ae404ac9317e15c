package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "paragraphs", input: "First line\nsecond line\n\nNext", expected: "<p>First line<br>second line</p>\n<p>Next</p>\n"},
		{name: "headings", input: "# Demand\n## Facts\nBody", expected: "<h2>Demand</h2>\n<h3>Facts</h3>\n<p>Body</p>\n"},
		{name: "list", input: "Items:\n- one\n- two\nafter", expected: "<p>Items:</p>\n<ul>\n<li>one</li>\n<li>two</li>\n</ul>\n<p>after</p>\n"},
		{name: "escaping", input: "<script>alert(1)</script> & co", expected: "<p>&lt;script&gt;alert(1)&lt;/script&gt; &amp; co</p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(TextToHTML(tt.input)); got != tt.expected {
				t.Fatalf("TextToHTML() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       "Demand <Letter>",
		MatterTitle: "Roe v. Acme",
		ClientName:  "Jane Roe",
		Author:      "Avery",
		UpdatedAt:   time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Version:     "abc1234",
		ContentHTML: TextToHTML("Body"),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Demand &lt;Letter&gt;", "Roe v. Acme", "Jane Roe", "<p>Body</p>", "October 15, 2026", "version abc1234"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html missing %q:\n%s", want, html)
		}
	}
}

func TestExportDispatchesByFormat(t *testing.T) {
	var got job
	stub := func(mime string) converter {
		return func(_ context.Context, j job) (*Result, error) {
			got = j
			return &Result{Data: []byte("x"), Filename: j.stem, MimeType: mime}, nil
		}
	}
	svc := &Service{pdf: stub("application/pdf"), docx: stub("docx")}

	result, err := svc.Export(context.Background(), Request{Format: FormatPDF, Title: "Letter", MatterTitle: "Roe v. Acme", DocumentType: "MOTION", Content: "Hello", Version: "0123456789abcdef"})
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if result.MimeType != "application/pdf" || got.title != "Letter" {
		t.Fatalf("unexpected result %+v title %q", result, got.title)
	}
	if result.Filename != "Roe-v-Acme_Letter_0123456" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if got.paper != paperLegal {
		t.Fatalf("expected legal paper for a motion, got %+v", got.paper)
	}
	if !strings.Contains(got.html, "<p>Hello</p>") || !strings.Contains(got.html, "version 0123456") {
		t.Fatalf("converter received unexpected html:\n%s", got.html)
	}

	if _, err := svc.Export(context.Background(), Request{Format: "odt"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, ok := ParseFormat(" PDF "); !ok || f != FormatPDF {
		t.Fatalf("expected pdf, got %q %v", f, ok)
	}
	if f, ok := ParseFormat("docx"); !ok || f != FormatDOCX {
		t.Fatalf("expected docx, got %q %v", f, ok)
	}
	if _, ok := ParseFormat("rtf"); ok {
		t.Fatal("expected rtf to be rejected")
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		matter, title, version string
		want                   string
	}{
		{matter: "Roe v. Acme", title: "Demand Letter: Final", version: "abc1234", want: "Roe-v-Acme_Demand-Letter-Final_abc1234"},
		{title: "  -- Motion  to   Dismiss --", want: "Motion-to-Dismiss"},
		{title: "???", want: "document"},
		{title: strings.Repeat("a", 100), want: strings.Repeat("a", maxStemLen)},
	}
	for _, tt := range tests {
		if got := fileStem(tt.matter, tt.title, tt.version); got != tt.want {
			t.Fatalf("fileStem(%q, %q, %q) = %q, want %q", tt.matter, tt.title, tt.version, got, tt.want)
		}
	}
}

func TestPaperFor(t *testing.T) {
	if paperFor(" complaint ") != paperLegal {
		t.Fatal("expected legal paper for a complaint")
	}
	if paperFor("LETTER") != paperLetter || paperFor("") != paperLetter {
		t.Fatal("expected letter paper by default")
	}
}

func TestHTMLDataURL(t *testing.T) {
	if got := htmlDataURL("a b<é"); got != "data:text/html;charset=utf-8,a%20b%3C%C3%A9" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestPandocArgs(t *testing.T) {
	args := strings.Join(pandocArgs(job{title: "Demand Letter", author: "Avery Park"}), " ")
	for _, want := range []string{"-t docx", "--metadata=title:Demand Letter", "--metadata=author:Avery Park", "-o -"} {
		if !strings.Contains(args, want) {
			t.Fatalf("pandoc args %q missing %q", args, want)
		}
	}
	if strings.Contains(strings.Join(pandocArgs(job{}), " "), "--metadata") {
		t.Fatal("expected no metadata flags without title or author")
	}
}
