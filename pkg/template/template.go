// Package template provides message content rendering for sendhub.
// The positional engine fills {0}-style slots from an ordered value list; the
// named engine renders Mustache templates from a variable map.
package template

import (
	"strconv"
	"strings"

	"github.com/kart-io/sendhub/pkg/errors"
)

// Render fills the template's positional slots from values, in order.
// "Hi {0}. {1}" with ["owner1", "all good"] renders "Hi owner1. all good".
// Literal braces are written {{ and }}.
//
// Rendering is pure and deterministic. It fails with TEMPLATE_MISMATCH when a
// slot index has no value or a value has no slot: a template bug affects all
// recipients identically, so it must fail loudly rather than truncate or pad.
func Render(template string, values []string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	maxIndex := -1
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", errors.Newf(errors.ErrTemplateRenderFailed, "unterminated slot at position %d", i)
			}
			index, err := strconv.Atoi(template[i+1 : i+end])
			if err != nil || index < 0 {
				return "", errors.Newf(errors.ErrTemplateRenderFailed, "invalid slot %q", template[i:i+end+1])
			}
			if index >= len(values) {
				return "", errors.Newf(errors.ErrTemplateMismatch,
					"template slot {%d} has no fill value (%d values supplied)", index, len(values))
			}
			if index > maxIndex {
				maxIndex = index
			}
			b.WriteString(values[index])
			i += end
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", errors.Newf(errors.ErrTemplateRenderFailed, "unmatched '}' at position %d", i)
		default:
			b.WriteByte(c)
		}
	}

	if len(values) > maxIndex+1 {
		return "", errors.Newf(errors.ErrTemplateMismatch,
			"%d fill values supplied but template uses %d slots", len(values), maxIndex+1)
	}

	return b.String(), nil
}

// SlotCount returns the number of positional slots the template expects: one
// more than the highest slot index, or zero for a slotless template.
func SlotCount(template string) (int, error) {
	maxIndex := -1
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return 0, errors.Newf(errors.ErrTemplateRenderFailed, "unterminated slot at position %d", i)
			}
			index, err := strconv.Atoi(template[i+1 : i+end])
			if err != nil || index < 0 {
				return 0, errors.Newf(errors.ErrTemplateRenderFailed, "invalid slot %q", template[i:i+end+1])
			}
			if index > maxIndex {
				maxIndex = index
			}
			i += end
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				i++
			}
		}
	}
	return maxIndex + 1, nil
}
