package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "vaeva/backend/libs/config"
	"vaeva/backend/services/reporter/internal/models"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "vaeva.yml"

// ErrConfig marks configuration problems that abort the run.
var ErrConfig = errors.New("config")

// Config is the report definition plus runtime settings.
type Config struct {
	Users   Section[models.User]   `yaml:"users" env:"-"`
	Sites   Section[models.Site]   `yaml:"sites" env:"-"`
	Outputs Section[models.Output] `yaml:"output" env:"-"`
	Meta    map[string]any         `yaml:"meta" env:"-"`

	Templates struct {
		Dir string `yaml:"dir" env:"VAEVA_TEMPLATES_DIR"`
	} `yaml:"templates"`
	PDF struct {
		Command    string `yaml:"command" env:"VAEVA_PDF_COMMAND"`
		Stylesheet string `yaml:"stylesheet" env:"VAEVA_PDF_STYLESHEET"`
	} `yaml:"pdf"`
	Wallbox struct {
		AuthURL        string `yaml:"authURL" env:"VAEVA_WALLBOX_AUTH_URL"`
		APIURL         string `yaml:"apiURL" env:"VAEVA_WALLBOX_API_URL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"VAEVA_WALLBOX_TIMEOUT"`
	} `yaml:"wallbox"`
	Fetch struct {
		Concurrency int `yaml:"concurrency" env:"VAEVA_FETCH_CONCURRENCY"`
	} `yaml:"fetch"`
	Redis struct {
		Addr     string `yaml:"addr" env:"VAEVA_REDIS_ADDR"`
		Password string `yaml:"password" env:"VAEVA_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"VAEVA_REDIS_DB"`
	} `yaml:"redis"`
	Directory struct {
		DSN   string `yaml:"dsn" env:"VAEVA_DIRECTORY_DSN"`
		Query string `yaml:"query" env:"VAEVA_DIRECTORY_QUERY"`
	} `yaml:"directory"`
	Metrics struct {
		Textfile string `yaml:"textfile" env:"VAEVA_METRICS_TEXTFILE"`
	} `yaml:"metrics"`
}

// Load reads the report configuration from path and applies env overrides.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	if err := libconfig.LoadFile(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Templates.Dir) == "" {
		c.Templates.Dir = "templates"
	}
	if strings.TrimSpace(c.PDF.Command) == "" {
		c.PDF.Command = "weasyprint"
	}
	if strings.TrimSpace(c.PDF.Stylesheet) == "" {
		c.PDF.Stylesheet = "vaeva.css"
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 1
	}
	for _, id := range c.Outputs.Keys() {
		out, _ := c.Outputs.Get(id)
		if out.Renderer == "" {
			out.Renderer = models.RendererFile
			c.Outputs.Set(id, out)
		}
	}
}

// Validate checks the report sections. Unknown scopes and renderers are left to the generator.
func (c *Config) Validate() error {
	sections := []struct {
		name    string
		present bool
	}{
		{"users", c.Users.Present()},
		{"sites", c.Sites.Present()},
		{"output", c.Outputs.Present()},
	}
	for _, s := range sections {
		if !s.present {
			return fmt.Errorf("%w: missing %q section", ErrConfig, s.name)
		}
	}

	for _, id := range c.Sites.Keys() {
		site, _ := c.Sites.Get(id)
		if strings.TrimSpace(string(site.Type)) == "" {
			return fmt.Errorf("%w: site %q has no type", ErrConfig, id)
		}
	}
	for _, id := range c.Outputs.Keys() {
		out, _ := c.Outputs.Get(id)
		if strings.TrimSpace(out.Template) == "" {
			return fmt.Errorf("%w: output %q has no template", ErrConfig, id)
		}
		if strings.TrimSpace(out.Filename) == "" {
			return fmt.Errorf("%w: output %q has no filename", ErrConfig, id)
		}
	}
	return nil
}

// UserList returns users in document order with ids filled in.
func (c *Config) UserList() []models.User {
	out := make([]models.User, 0, c.Users.Len())
	for _, id := range c.Users.Keys() {
		u, _ := c.Users.Get(id)
		u.ID = id
		out = append(out, u)
	}
	return out
}

// SiteList returns sites in document order with ids filled in.
func (c *Config) SiteList() []models.Site {
	out := make([]models.Site, 0, c.Sites.Len())
	for _, id := range c.Sites.Keys() {
		s, _ := c.Sites.Get(id)
		s.ID = id
		out = append(out, s)
	}
	return out
}

// OutputList returns outputs in document order with ids filled in.
func (c *Config) OutputList() []models.Output {
	out := make([]models.Output, 0, c.Outputs.Len())
	for _, id := range c.Outputs.Keys() {
		o, _ := c.Outputs.Get(id)
		o.ID = id
		out = append(out, o)
	}
	return out
}

// WallboxTimeout returns the vendor HTTP timeout.
func (c *Config) WallboxTimeout() time.Duration {
	if c.Wallbox.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Wallbox.TimeoutSeconds) * time.Second
}
