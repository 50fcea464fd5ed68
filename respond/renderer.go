package respond

import (
	"context"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/rules"
)

// TemplateRenderer renders bodies with text/template plus the sprig function
// map. Missing keys are errors so a bad template degrades instead of leaking
// "<no value>" into responses.
type TemplateRenderer struct{}

var _ rules.Renderer = (*TemplateRenderer)(nil)

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render implements rules.Renderer.Render
func (r *TemplateRenderer) Render(_ context.Context, body string, data map[string]any) (string, error) {
	tmpl, err := template.New("response").
		Funcs(sprig.FuncMap()).
		Option("missingkey=error").
		Parse(body)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse template")
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute template")
	}
	return sb.String(), nil
}
