package app

import (
	"testing"

	"github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	vars := map[string]string{
		"first_name": "Alice",
		"company":    "Acme",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "simple substitution",
			template: "Hi {{first_name}}, welcome!",
			want:     "Hi Alice, welcome!",
		},
		{
			name:     "whitespace inside token tolerated",
			template: "Hi {{ first_name }} from {{  company  }}",
			want:     "Hi Alice from Acme",
		},
		{
			name:     "unknown token left verbatim",
			template: "Hi {{nickname}}",
			want:     "Hi {{nickname}}",
		},
		{
			name:     "no tokens",
			template: "Plain text body",
			want:     "Plain text body",
		},
		{
			name:     "repeated token",
			template: "{{first_name}} {{first_name}}",
			want:     "Alice Alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, vars))
		})
	}
}

func TestVariantAssigner(t *testing.T) {
	t.Run("single variant always index zero", func(t *testing.T) {
		a := NewVariantAssigner()
		for i := 0; i < 10; i++ {
			assert.Equal(t, 0, a.Assign([]domain.Variant{{Subject: "only"}}))
		}
	})

	t.Run("empty variants index zero", func(t *testing.T) {
		a := NewVariantAssigner()
		assert.Equal(t, 0, a.Assign(nil))
	})

	t.Run("injected source controls choice", func(t *testing.T) {
		a := NewVariantAssignerWithSource(func(n int) int { return n - 1 })
		variants := []domain.Variant{{Subject: "a"}, {Subject: "b"}, {Subject: "c"}}
		assert.Equal(t, 2, a.Assign(variants))
	})

	t.Run("random choice stays in range", func(t *testing.T) {
		a := NewVariantAssigner()
		variants := []domain.Variant{{Subject: "a"}, {Subject: "b"}}
		for i := 0; i < 50; i++ {
			idx := a.Assign(variants)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 2)
		}
	})
}
