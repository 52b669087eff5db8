package sltmpl

import (
	"fmt"
)

// TemplateString is a string field holding template source, typically
// decoded from a YAML or JSON document.
type TemplateString string

func (t TemplateString) Validate() error {
	if _, err := Parse(string(t)); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return nil
}

func (t TemplateString) Render(ctx any, macros Macros) (string, error) {
	return t.RenderEnv(ctx, &Env{Macros: macros})
}

func (t TemplateString) RenderEnv(ctx any, env *Env) (string, error) {
	tpl, err := Parse(string(t))
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	return tpl.RenderEnv(ctx, env)
}
