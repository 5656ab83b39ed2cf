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

const pdfRenderTimeout = 30 * time.Second

// chromiumCandidates are tried in order; the first one on PATH renders.
var chromiumCandidates = []string{"chromium-browser", "chromium", "google-chrome"}

// US Letter with three-quarter inch margins, in inches.
const (
	paperWidth  = 8.5
	paperHeight = 11.0
	paperMargin = 0.75
)

func findChromium() (string, bool) {
	for _, name := range chromiumCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func chromiumOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	return append(opts,
		chromedp.ExecPath(execPath),
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
}

// exportPDF prints the transcript HTML through headless Chromium.
func exportPDF(parent context.Context, html string, title string) (*Result, error) {
	execPath, ok := findChromium()
	if !ok {
		return nil, fmt.Errorf("%w: none of %s found on PATH",
			ErrPDFDependencyMissing, strings.Join(chromiumCandidates, ", "))
	}

	ctx, cancel := context.WithTimeout(parent, pdfRenderTimeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromiumOptions(execPath)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	printToPDF := chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidth).
			WithPaperHeight(paperHeight).
			WithMarginTop(paperMargin).
			WithMarginBottom(paperMargin).
			WithMarginLeft(paperMargin).
			WithMarginRight(paperMargin).
			WithDisplayHeaderFooter(false).
			Do(ctx)
		pdf = data
		return err
	})

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(html)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		printToPDF,
	); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// percentEncodeForDataURL escapes every byte outside the RFC 3986
// unreserved set. Spaces become %20, never +.
func percentEncodeForDataURL(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// sanitizeFilename keeps ASCII letters, digits, dashes and underscores,
// turns spaces into dashes and caps the result at 50 bytes.
func sanitizeFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '-'
		case r < 128 && (isUnreserved(byte(r)) && r != '.' && r != '~'):
			return r
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		return "transcript"
	}
	return name
}
