package schemacompat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAliasesCanonicalizesKnownKeys(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want map[string]any
	}{
		{
			name: "filepath alias",
			args: map[string]any{"filepath": "foo.txt"},
			want: map[string]any{"path": "foo.txt"},
		},
		{
			name: "collision keeps canonical value",
			args: map[string]any{"path": "a.txt", "filename": "b.txt"},
			want: map[string]any{"path": "a.txt"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeAliases(tc.args)
			require.Equal(t, tc.want, got.Args)
		})
	}
}

func TestNormalizeAliasesReportsCollision(t *testing.T) {
	got := normalizeAliases(map[string]any{"path": "a.txt", "filename": "b.txt"})
	require.Equal(t, []string{"filename"}, got.Collisions)
}

func TestNormalizeEditStreamContentCoercion(t *testing.T) {
	args := map[string]any{
		"path": "F.md",
		"streamContent": []any{
			"# Plan\n",
			map[string]any{"text": "- Step 1\n"},
			map[string]any{"text": "- Step 2\n"},
		},
	}
	got := Normalize("edit", args)
	require.Equal(t, "# Plan\n- Step 1\n- Step 2\n", got.Args["new_string"])
	require.Equal(t, "", got.Args["old_string"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	args := map[string]any{"filepath": "foo.txt", "content": "hello"}
	once := Normalize("edit", args)
	twice := Normalize("edit", once.Args)
	require.Equal(t, once.Args, twice.Args)
}

func TestNormalizeTodoWriteStatusCanonicalization(t *testing.T) {
	args := map[string]any{
		"todos": []any{
			map[string]any{"status": "TODO_STATUS_COMPLETED"},
			map[string]any{"status": "in-progress"},
		},
	}
	got := Normalize("todowrite", args)
	todos := got.Args["todos"].([]any)
	require.Equal(t, "completed", todos[0].(map[string]any)["status"])
	require.Equal(t, "in_progress", todos[1].(map[string]any)["status"])
	require.Equal(t, "medium", todos[0].(map[string]any)["priority"])
}

func TestValidateMissingRequired(t *testing.T) {
	schema := `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`
	result := Validate("read", schema, map[string]any{})
	require.True(t, result.HasSchema)
	require.False(t, result.OK)
	require.Contains(t, result.Missing, "path")
}

func TestValidateStripsAdditionalProperties(t *testing.T) {
	schema := `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"],"additionalProperties":false}`
	result := Validate("read", schema, map[string]any{"path": "a.txt", "extra": "x"})
	require.True(t, result.OK)
	require.Equal(t, []string{"extra"}, result.Unexpected)
}

func TestArgShapeIsOrderIndependent(t *testing.T) {
	a := ArgShape(map[string]any{"b": "x", "a": float64(1)})
	b := ArgShape(map[string]any{"a": float64(1), "b": "x"})
	require.Equal(t, a, b)
}
