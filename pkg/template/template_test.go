package template

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sendhub/pkg/errors"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   []string
		want     string
	}{
		{
			name:     "two slots",
			template: "Hi {0}. {1}",
			values:   []string{"owner1", "Expiration for instance 'inst1': 2099-01-01\n"},
			want:     "Hi owner1. Expiration for instance 'inst1': 2099-01-01\n",
		},
		{
			name:     "repeated slot",
			template: "{0} and {0} again",
			values:   []string{"x"},
			want:     "x and x again",
		},
		{
			name:     "no slots",
			template: "static content",
			values:   nil,
			want:     "static content",
		},
		{
			name:     "escaped braces",
			template: "{{0}} is literal, {0} is not",
			values:   []string{"v"},
			want:     "{0} is literal, v is not",
		},
		{
			name:     "out of order slots",
			template: "{1}-{0}",
			values:   []string{"a", "b"},
			want:     "b-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderArityMismatch(t *testing.T) {
	// Slot/value disagreement fails loudly in both directions rather than
	// truncating or padding.
	tests := []struct {
		name     string
		template string
		values   []string
	}{
		{"missing value", "Hi {0}. {1}", []string{"owner1"}},
		{"extra value", "Hi {0}.", []string{"owner1", "unused"}},
		{"values for slotless template", "static", []string{"unused"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.template, tt.values)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.New(errors.ErrTemplateMismatch, "")))
		})
	}
}

func TestRenderMalformedTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"unterminated slot", "Hi {0"},
		{"non-numeric slot", "Hi {name}"},
		{"negative slot", "Hi {-1}"},
		{"unmatched closing brace", "Hi }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.template, []string{"v"})
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.New(errors.ErrTemplateRenderFailed, "")))
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	template := "Hi {0}. {1}"
	values := []string{"owner1", "note"}

	first, err := Render(template, values)
	require.NoError(t, err)
	second, err := Render(template, values)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Hi {0}. {1}", template)
	assert.Equal(t, []string{"owner1", "note"}, values)
}

func TestSlotCount(t *testing.T) {
	tests := []struct {
		template string
		want     int
	}{
		{"Hi {0}. {1}", 2},
		{"{0} {0}", 1},
		{"static", 0},
		{"{{literal}}", 0},
		{"{2}", 3},
	}

	for _, tt := range tests {
		got, err := SlotCount(tt.template)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.template)
	}
}

func TestRenderNamed(t *testing.T) {
	got, err := RenderNamed("Hi {{owner}}, {{note}}", map[string]interface{}{
		"owner": "owner1",
		"note":  "all good",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi owner1, all good", got)
}

func TestValidateNamed(t *testing.T) {
	assert.NoError(t, ValidateNamed("Hi {{owner}}"))
	assert.Error(t, ValidateNamed("Hi {{#unclosed}}"))
}
