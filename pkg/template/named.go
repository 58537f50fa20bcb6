// Mustache-backed named-variable rendering
package template

import (
	"github.com/cbroglie/mustache"

	"github.com/kart-io/sendhub/pkg/errors"
)

// RenderNamed renders a Mustache template from a variable map. It covers
// callers whose fill values are naturally keyed rather than positional,
// e.g. "Hi {{owner}}, instance {{name}} expires {{expiration}}".
func RenderNamed(content string, variables map[string]interface{}) (string, error) {
	result, err := mustache.Render(content, variables)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTemplateRenderFailed, "mustache render failed")
	}
	return result, nil
}

// ValidateNamed validates Mustache template syntax without rendering.
func ValidateNamed(content string) error {
	if _, err := mustache.ParseString(content); err != nil {
		return errors.Wrap(err, errors.ErrTemplateRenderFailed, "invalid mustache template syntax")
	}
	return nil
}
