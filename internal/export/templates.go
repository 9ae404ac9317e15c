package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("January 2, 2006")
	},
}).Parse(documentHTML))

type TemplateData struct {
	Title        string
	MatterTitle  string
	ClientName   string
	DocumentType string
	Author       string
	UpdatedAt    time.Time
	Version      string
	ContentHTML  template.HTML
}

func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TextToHTML renders draft text: blank lines separate paragraphs, "#" and "##"
// prefixes become headings and "- " lines become list items. Everything is escaped.
func TextToHTML(content string) template.HTML {
	var out strings.Builder
	var paragraph []string
	inList := false

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		out.WriteString("<p>")
		for i, line := range paragraph {
			if i > 0 {
				out.WriteString("<br>")
			}
			out.WriteString(template.HTMLEscapeString(line))
		}
		out.WriteString("</p>\n")
		paragraph = nil
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flushParagraph()
			closeList()
		case strings.HasPrefix(trimmed, "## "):
			flushParagraph()
			closeList()
			out.WriteString("<h3>" + template.HTMLEscapeString(strings.TrimSpace(trimmed[3:])) + "</h3>\n")
		case strings.HasPrefix(trimmed, "# "):
			flushParagraph()
			closeList()
			out.WriteString("<h2>" + template.HTMLEscapeString(strings.TrimSpace(trimmed[2:])) + "</h2>\n")
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			flushParagraph()
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + template.HTMLEscapeString(strings.TrimSpace(trimmed[2:])) + "</li>\n")
		default:
			closeList()
			paragraph = append(paragraph, line)
		}
	}
	flushParagraph()
	closeList()
	return template.HTML(out.String())
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    @page { size: Letter; margin: 1in; }
    body { font-family: "Times New Roman", serif; font-size: 12pt; line-height: 1.5; }
    h1 { font-size: 16pt; text-align: center; margin-bottom: 0.25in; }
    .caption { border-bottom: 1px solid #000; margin-bottom: 0.3in; padding-bottom: 0.1in; font-size: 10pt; }
    .footer { margin-top: 0.5in; font-size: 9pt; color: #555; }
  </style>
</head>
<body>
  <div class="caption">
    {{if .MatterTitle}}<div><strong>Matter:</strong> {{.MatterTitle}}</div>{{end}}
    {{if .ClientName}}<div><strong>Client:</strong> {{.ClientName}}</div>{{end}}
    {{if .DocumentType}}<div><strong>Document:</strong> {{.DocumentType}}</div>{{end}}
  </div>
  <h1>{{.Title}}</h1>
  {{.ContentHTML}}
  <div class="footer">
    {{if .Author}}Prepared by {{.Author}}{{end}}{{with formatDate .UpdatedAt}} on {{.}}{{end}}{{if .Version}} (version {{.Version}}){{end}}
  </div>
</body>
</html>`
