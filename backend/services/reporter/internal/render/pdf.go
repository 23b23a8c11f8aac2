package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrEmptyPDF is returned when the converter exits cleanly without output.
var ErrEmptyPDF = errors.New("render: pdf converter produced no output")

// PDFConverter turns rendered HTML into a PDF document.
type PDFConverter interface {
	Convert(ctx context.Context, html, stylesheet string) ([]byte, error)
}

// CommandConverter runs a weasyprint compatible command: `<cmd> - - -s <stylesheet>`, HTML on
// stdin and PDF on stdout.
type CommandConverter struct {
	command string
}

// NewCommandConverter returns converter for command.
func NewCommandConverter(command string) *CommandConverter {
	return &CommandConverter{command: command}
}

// Convert runs the command.
func (c *CommandConverter) Convert(ctx context.Context, html, stylesheet string) ([]byte, error) {
	args := []string{"-", "-"}
	if stylesheet != "" {
		args = append(args, "-s", stylesheet)
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Stdin = strings.NewReader(html)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("render: %s: %w: %s", c.command, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, ErrEmptyPDF
	}
	return stdout.Bytes(), nil
}
