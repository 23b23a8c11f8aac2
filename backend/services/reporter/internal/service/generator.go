package service

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"vaeva/backend/libs/metrics"
	"vaeva/backend/services/reporter/internal/models"
)

// Renderer turns a data context into the output's file.
type Renderer interface {
	Render(ctx context.Context, output models.Output, filename string, data map[string]any) error
}

// Pass is one render task of an output.
type Pass struct {
	Filename string
	Sessions []models.Session
	Totals   models.Totals
	User     *models.User
}

// Generator produces every render pass of the configured outputs.
type Generator struct {
	users    []models.User
	sessions []models.Session
	meta     models.Meta
	renderer Renderer
	metrics  *metrics.RunMetrics
	logger   *zap.Logger
}

// NewGenerator builds generator over the sorted session collection.
func NewGenerator(users []models.User, sessions []models.Session, meta models.Meta, renderer Renderer, m *metrics.RunMetrics, logger *zap.Logger) *Generator {
	return &Generator{
		users:    users,
		sessions: sessions,
		meta:     meta,
		renderer: renderer,
		metrics:  m,
		logger:   logger,
	}
}

// Passes lists the render tasks of output. userID, when set, limits user scope to that user.
// Unknown scopes yield nothing.
func (g *Generator) Passes(output models.Output, userID string) iter.Seq[Pass] {
	return func(yield func(Pass) bool) {
		switch output.Data {
		case models.ScopeHistory:
			yield(Pass{
				Filename: ResolveFilename(output.Filename, nil),
				Sessions: g.sessions,
				Totals:   ComputeTotals(g.sessions),
			})
		case models.ScopeUser:
			for _, u := range g.users {
				if userID != "" && u.ID != userID {
					continue
				}
				subset := MatchUserSessions(g.sessions, u)
				if !yield(Pass{
					Filename: ResolveFilename(output.Filename, u.Variables()),
					Sessions: subset,
					Totals:   ComputeTotals(subset),
					User:     &u,
				}) {
					return
				}
			}
		}
	}
}

// Generate renders every pass of output. Unknown scopes and renderer kinds produce nothing and are
// never handed to the renderer.
func (g *Generator) Generate(ctx context.Context, output models.Output, userID string) error {
	logger := g.logger.With(zap.String("output", output.ID))
	if !output.Data.Valid() {
		logger.Warn("unknown output data scope, nothing generated", zap.String("data", string(output.Data)))
		return nil
	}
	if !output.Renderer.Valid() {
		logger.Warn("unknown output renderer, nothing generated", zap.String("renderer", string(output.Renderer)))
		return nil
	}

	for pass := range g.Passes(output, userID) {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("generating output", zap.String("name", output.Name), zap.String("filename", pass.Filename))
		if err := g.renderer.Render(ctx, output, pass.Filename, g.dataContext(output, pass)); err != nil {
			return fmt.Errorf("output %q (%s): %w", output.ID, pass.Filename, err)
		}
		g.metrics.OutputsRendered.WithLabelValues(output.ID, string(output.Renderer)).Inc()
	}
	return nil
}

func (g *Generator) dataContext(output models.Output, pass Pass) map[string]any {
	sessions := make([]map[string]any, 0, len(pass.Sessions))
	for _, s := range pass.Sessions {
		sessions = append(sessions, s.Fields())
	}
	data := map[string]any{
		"meta":     g.meta.Fields(),
		"output":   map[string]any{"id": output.ID, "name": output.Name},
		"sessions": sessions,
		"sum":      pass.Totals.Fields(),
	}
	if pass.User != nil {
		data["user"] = pass.User.Fields()
	}
	return data
}

// MatchUserSessions selects sessions whose recorded email or badge equals the user's. Empty user
// fields never match, so a user without a badge does not collect every badge-less session.
func MatchUserSessions(sessions []models.Session, u models.User) []models.Session {
	var out []models.Session
	for _, s := range sessions {
		if (u.Email != "" && s.Email == u.Email) || (u.Badge != "" && s.Badge == u.Badge) {
			out = append(out, s)
		}
	}
	return out
}

// ResolveFilename replaces each {{key}} in pattern with its value. Unknown tokens stay literal.
func ResolveFilename(pattern string, vars map[string]string) string {
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		pattern = strings.ReplaceAll(pattern, "{{"+k+"}}", vars[k])
	}
	return pattern
}
