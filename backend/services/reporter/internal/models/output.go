package models

// Scope selects how many render passes an output produces.
type Scope string

// Known scopes.
const (
	ScopeHistory Scope = "history"
	ScopeUser    Scope = "user"
)

// Valid reports whether the scope is one the generator iterates.
func (s Scope) Valid() bool {
	return s == ScopeHistory || s == ScopeUser
}

// RendererKind selects what happens with rendered template text.
type RendererKind string

// Known renderer kinds.
const (
	RendererFile RendererKind = "file"
	RendererPDF  RendererKind = "pdf"
)

// Valid reports whether the renderer kind produces output.
func (r RendererKind) Valid() bool {
	return r == RendererFile || r == RendererPDF
}

// Output is one report definition.
type Output struct {
	ID       string       `yaml:"-" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Data     Scope        `yaml:"data" json:"data"`
	Template string       `yaml:"template" json:"template"`
	Filename string       `yaml:"filename" json:"filename"`
	Renderer RendererKind `yaml:"renderer" json:"renderer"`
}
