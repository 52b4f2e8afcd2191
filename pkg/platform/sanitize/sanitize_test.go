package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_String(t *testing.T) {
	t.Run("strips NUL and control characters", func(t *testing.T) {
		assert.Equal(t, "Petition", String("Pet\x00it\x01ion"))
		assert.Equal(t, "[31mabc[0m", String("\x1b[31mabc\x1b[0m"))
	})

	t.Run("keeps punctuation and accented text", func(t *testing.T) {
		in := `Ação nº 12.345-6: "urgente" (prazo!)`
		assert.Equal(t, in, String(in))
	})

	t.Run("keeps newlines and tabs in document bodies", func(t *testing.T) {
		assert.Equal(t, "line one\n\tline two", String("line one\n\tline two"))
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "title", String("  title  "))
	})
}

func Test_Value_RecursesThroughNestedStructures(t *testing.T) {
	in := map[string]any{
		"title": "Initial\x00 petition",
		"tags":  []any{"civ\x07il", "urgent"},
		"nested": map[string]any{
			"author": "Dr.\x1f Silva",
			"count":  float64(3),
		},
	}

	out := Value(in).(map[string]any)

	assert.Equal(t, "Initial petition", out["title"])
	assert.Equal(t, []any{"civil", "urgent"}, out["tags"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "Dr. Silva", nested["author"])
	assert.Equal(t, float64(3), nested["count"])
}
