package notifiers

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// TemplateError reports a template that could not be parsed.
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string { return fmt.Sprintf("malformed template: %v", e.Err) }

func (e *TemplateError) Unwrap() error { return e.Err }

// RenderError reports a failure while executing a parsed template,
// such as a missing parameter or a failed write.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("failed to render template: %v", e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer personalizes payload text with named parameters.
// Parsed templates are cached by the SHA-256 of their source; a Renderer is safe for concurrent use.
type Renderer struct {
	templates sync.Map // map[[sha256.Size]byte]*template.Template
}

// NewRenderer creates an empty Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render executes text as a template against params.
// Referencing a parameter that is not supplied is an error.
func (r *Renderer) Render(text string, params map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := r.parse(text)
	if err != nil {
		return "", err
	}

	if params == nil {
		params = map[string]any{}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, params); err != nil {
		return "", &RenderError{Err: err}
	}
	return sb.String(), nil
}

func (r *Renderer) parse(text string) (*template.Template, error) {
	key := sha256.Sum256([]byte(text))
	if cached, ok := r.templates.Load(key); ok {
		return cached.(*template.Template), nil
	}

	tmpl, err := template.New("payload").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &TemplateError{Err: err}
	}

	actual, _ := r.templates.LoadOrStore(key, tmpl)
	return actual.(*template.Template), nil
}
