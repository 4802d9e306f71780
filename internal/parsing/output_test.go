package parsing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williammiras/dash/internal/models"
)

const validAnswer = `{"summary":"Housing datasets","relevancyExplained":"They cover prices by region","sources":["https://example.com"],"tools_used":["search"]}`

func TestOutputParser_Schema(t *testing.T) {
	p := MustOutputParser()

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.Schema()), &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "summary")
	assert.Contains(t, props, "relevancyExplained")
	assert.Contains(t, props, "sources")
	assert.Contains(t, props, "tools_used")
	assert.ElementsMatch(t, []any{"summary", "relevancyExplained", "sources", "tools_used"}, schema["required"])
	assert.Contains(t, p.FormatInstructions(), p.Schema())
}

func TestOutputParser_Parse(t *testing.T) {
	p := MustOutputParser()

	t.Run("Should parse a valid answer", func(t *testing.T) {
		got, err := p.Parse(validAnswer)

		require.NoError(t, err)
		assert.Equal(t, &models.DataQuery{
			Summary:            "Housing datasets",
			RelevancyExplained: "They cover prices by region",
			Sources:            []string{"https://example.com"},
			ToolsUsed:          []string{"search"},
		}, got)
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		a, err := p.Parse(validAnswer)
		require.NoError(t, err)
		b, err := p.Parse(validAnswer)
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("Should accept an answer wrapped in a json code fence", func(t *testing.T) {
		got, err := p.Parse("```json\n" + validAnswer + "\n```")

		require.NoError(t, err)
		assert.Equal(t, "Housing datasets", got.Summary)
	})

	t.Run("Should ignore unknown fields", func(t *testing.T) {
		got, err := p.Parse(`{"summary":"s","relevancyExplained":"r","sources":[],"tools_used":[],"title":"extra"}`)

		require.NoError(t, err)
		assert.Empty(t, got.Sources)
	})

	t.Run("Should read fields by their exact names", func(t *testing.T) {
		got, err := p.Parse(`{"summary":"real","relevancyExplained":"r","sources":["https://a.example"],"tools_used":[],` +
			`"Summary":"shadow","SOURCES":["https://evil.example"]}`)

		require.NoError(t, err)
		assert.Equal(t, "real", got.Summary)
		assert.Equal(t, []string{"https://a.example"}, got.Sources)
	})

	cases := []struct {
		name string
		raw  string
	}{
		{"prose", "Here are some great housing datasets: Zillow, Redfin."},
		{"empty", "   "},
		{"missing field", `{"summary":"s","relevancyExplained":"r","sources":[]}`},
		{"mistyped field", `{"summary":"s","relevancyExplained":"r","sources":"https://example.com","tools_used":[]}`},
		{"null list", `{"summary":"s","relevancyExplained":"r","sources":null,"tools_used":[]}`},
		{"non-string item", `{"summary":"s","relevancyExplained":"r","sources":[1],"tools_used":[]}`},
		{"array root", `[` + validAnswer + `]`},
		{"trailing prose", validAnswer + " Hope this helps!"},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			got, err := p.Parse(tc.raw)

			assert.Nil(t, got)
			require.ErrorIs(t, err, ErrSchemaMismatch)
			var mismatch *SchemaMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tc.raw, mismatch.Raw)
			assert.NotEmpty(t, mismatch.Reason)
		})
	}
}

func TestOutputParser_ParseOrPassthrough(t *testing.T) {
	p := MustOutputParser()

	t.Run("Should keep the raw text on failure", func(t *testing.T) {
		raw := "I could not find JSON-worthy datasets, sorry."

		res := p.ParseOrPassthrough(raw)

		assert.False(t, res.OK())
		assert.Nil(t, res.Value)
		assert.Equal(t, raw, res.Raw)
	})

	t.Run("Should return the value on success", func(t *testing.T) {
		res := p.ParseOrPassthrough(validAnswer)

		require.True(t, res.OK())
		assert.Equal(t, "Housing datasets", res.Value.Summary)
		assert.Equal(t, validAnswer, res.Raw)
	})
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, "plain", stripCodeFence("  plain  "))
}
