package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

// Pleadings are numbered "Page N of M" in the bottom margin.
const pdfFooter = `<div style="font-family: Georgia, serif; font-size: 8pt; width: 100%; text-align: center; color: #555;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// chromeBinary finds a headless-capable Chromium on PATH.
func chromeBinary() (string, error) {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
}

// htmlDataURL percent-encodes html into a data URL. Spaces must be %20, not '+'.
func htmlDataURL(html string) string {
	var b strings.Builder
	b.Grow(len(html) + 32)
	b.WriteString("data:text/html;charset=utf-8,")
	for i := 0; i < len(html); i++ {
		c := html[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func exportPDF(ctx context.Context, j job) (*Result, error) {
	binary, err := chromeBinary()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var data []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(htmlDataURL(j.html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			data, _, printErr = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(j.paper.width).
				WithPaperHeight(j.paper.height).
				WithMarginTop(1).
				WithMarginBottom(1).
				WithMarginLeft(j.paper.leftMargin).
				WithMarginRight(1).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate("<span></span>").
				WithFooterTemplate(pdfFooter).
				Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	return &Result{
		Data:     data,
		Filename: j.stem + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
