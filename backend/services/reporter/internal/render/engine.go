package render

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"path/filepath"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/shopspring/decimal"
)

// executor is satisfied by both text and html templates.
type executor interface {
	Execute(wr io.Writer, data any) error
}

// Engine renders named templates from a directory. Files ending in .html, .htm or .xml are
// autoescaped.
type Engine struct {
	dir string

	mu    sync.Mutex
	cache map[string]executor
}

// NewEngine returns an engine reading templates from dir.
func NewEngine(dir string) *Engine {
	return &Engine{dir: dir, cache: make(map[string]executor)}
}

// Render executes template name with data.
func (e *Engine) Render(name string, data map[string]any) (string, error) {
	tmpl, err := e.load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func (e *Engine) load(name string) (executor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[name]; ok {
		return tmpl, nil
	}

	path := filepath.Join(e.dir, filepath.FromSlash(name))
	base := filepath.Base(path)

	var tmpl executor
	if autoescape(name) {
		t, err := htmltemplate.New(base).Funcs(sprig.HtmlFuncMap()).Funcs(htmltemplate.FuncMap(helpers())).ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", name, err)
		}
		tmpl = t
	} else {
		t, err := texttemplate.New(base).Funcs(sprig.TxtFuncMap()).Funcs(texttemplate.FuncMap(helpers())).ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", name, err)
		}
		tmpl = t
	}
	e.cache[name] = tmpl
	return tmpl, nil
}

func autoescape(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xml":
		return true
	}
	return false
}

// helpers are report specific template functions on top of sprig.
func helpers() map[string]any {
	return map[string]any{
		// fixed formats a number with exactly n decimals: {{ fixed 2 .sum.amount }}
		"fixed": func(places int, v any) string {
			d, ok := toDecimal(v)
			if !ok {
				return fmt.Sprint(v)
			}
			return d.StringFixed(int32(places))
		},
		// hours formats seconds as h:mm: {{ hours .duration }}
		"hours": func(v any) string {
			d, ok := toDecimal(v)
			if !ok {
				return fmt.Sprint(v)
			}
			dur := time.Duration(d.IntPart()) * time.Second
			return fmt.Sprintf("%d:%02d", int(dur.Hours()), int(dur.Minutes())%60)
		},
		// dmy formats a time as dd/mm/yyyy
		"dmy": func(t time.Time) string {
			return t.Format("02/01/2006")
		},
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	}
	return decimal.Decimal{}, false
}
