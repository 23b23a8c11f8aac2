package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/models"
)

// ErrUnknownRenderer is returned for renderer kinds this service cannot produce. The generator
// skips such outputs with a warning before calling Render, so this only reaches direct callers.
var ErrUnknownRenderer = errors.New("render: unknown renderer")

// TemplateRenderer renders a named template.
type TemplateRenderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Service renders templates and writes them as text or PDF files.
type Service struct {
	templates  TemplateRenderer
	pdf        PDFConverter
	stylesheet string
	logger     *zap.Logger
}

// NewService builds render service.
func NewService(templates TemplateRenderer, pdf PDFConverter, stylesheet string, logger *zap.Logger) *Service {
	return &Service{
		templates:  templates,
		pdf:        pdf,
		stylesheet: stylesheet,
		logger:     logger,
	}
}

// Render executes the output's template and writes filename.
func (s *Service) Render(ctx context.Context, output models.Output, filename string, data map[string]any) error {
	content, err := s.templates.Render(output.Template, data)
	if err != nil {
		return err
	}

	var body []byte
	switch output.Renderer {
	case models.RendererFile:
		body = []byte(content)
	case models.RendererPDF:
		body, err = s.pdf.Convert(ctx, content, s.stylesheet)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownRenderer, output.Renderer)
	}

	if err := writeFile(filename, body); err != nil {
		return err
	}
	s.logger.Debug("output written", zap.String("filename", filename), zap.Int("bytes", len(body)))
	return nil
}

func writeFile(filename string, body []byte) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: create dir: %w", err)
		}
	}
	if err := os.WriteFile(filename, body, 0o644); err != nil {
		return fmt.Errorf("render: write %s: %w", filename, err)
	}
	return nil
}
