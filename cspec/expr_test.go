package cspec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExprEvaluator_Parse(t *testing.T) {
	e := NewExprEvaluator()

	t.Run("plain identifier", func(t *testing.T) {
		p, err := e.Parse("#name")
		require.NoError(t, err)
		require.Equal(t, "name", p.VariableName)
		require.Empty(t, p.FunctionName)
	})

	t.Run("plain call", func(t *testing.T) {
		p, err := e.Parse("#add(#a, #b)")
		require.NoError(t, err)
		require.Equal(t, "add", p.FunctionName)
		require.Empty(t, p.VariableName)
	})

	t.Run("assignment to call", func(t *testing.T) {
		p, err := e.Parse("#sum = #add(#a, #b)")
		require.NoError(t, err)
		require.Equal(t, "sum", p.VariableName)
		require.Equal(t, "add", p.FunctionName)
	})

	t.Run("assignment with comparison operator is not split as assignment", func(t *testing.T) {
		p, err := e.Parse("#a == #b")
		require.NoError(t, err)
		require.Empty(t, p.VariableName)
		require.Empty(t, p.FunctionName)
	})
}

func TestExprEvaluator_Evaluate(t *testing.T) {
	e := NewExprEvaluator()

	t.Run("reads a bound variable", func(t *testing.T) {
		ctx := NewMapContext(map[string]any{"name": "Alice"})
		result, err := e.Evaluate(ctx, "#name")
		require.NoError(t, err)
		require.Equal(t, "Alice", result)
	})

	t.Run("calls a bound function", func(t *testing.T) {
		ctx := NewMapContext(map[string]any{
			"add": func(a, b int) int { return a + b },
		})
		result, err := e.Evaluate(ctx, "#add(2, 3)")
		require.NoError(t, err)
		require.Equal(t, 5, result)
	})

	t.Run("assignment writes the result back to the context", func(t *testing.T) {
		ctx := NewMapContext(map[string]any{
			"add": func(a, b int) int { return a + b },
		})
		_, err := e.Evaluate(ctx, "#sum = #add(2, 3)")
		require.NoError(t, err)
		v, ok := ctx.Get("sum")
		require.True(t, ok)
		require.Equal(t, 5, v)
	})

	t.Run("all sigils are stripped, not just a leading one", func(t *testing.T) {
		ctx := NewMapContext(map[string]any{
			"upper": func(s string) string { return s + "!" },
			"TEXT":  "hi",
		})
		result, err := e.Evaluate(ctx, "upper(#TEXT)")
		require.NoError(t, err)
		require.Equal(t, "hi!", result)
	})
}
