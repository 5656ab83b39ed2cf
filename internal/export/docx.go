package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pandocBinary is swapped in tests.
var pandocBinary = "pandoc"

// exportDOCX pipes the rendered transcript through pandoc.
func exportDOCX(ctx context.Context, html string, title string) (*Result, error) {
	bin, err := exec.LookPath(pandocBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found on PATH", ErrDOCXDependencyMissing, pandocBinary)
	}

	args := []string{"--from=html", "--to=docx", "--standalone", "--output=-"}
	if t := strings.TrimSpace(title); t != "" {
		args = append(args, "--metadata=title:"+t)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run pandoc: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("pandoc produced no output")
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
