package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pandocArgs sets the title and author core properties so the file shows up
// correctly in a document management system.
func pandocArgs(j job) []string {
	args := []string{"-f", "html", "-t", "docx", "--standalone"}
	if j.title != "" {
		args = append(args, "--metadata=title:"+j.title)
	}
	if j.author != "" {
		args = append(args, "--metadata=author:"+j.author)
	}
	return append(args, "-o", "-")
}

func exportDOCX(ctx context.Context, j job) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pandoc", pandocArgs(j)...)
	cmd.Stdin = strings.NewReader(j.html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run pandoc: %w", err)
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: j.stem + ".docx",
		MimeType: docxMime,
	}, nil
}
