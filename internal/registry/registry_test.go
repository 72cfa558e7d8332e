package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addDecls = `[
  {
    "name": "add",
    "description": "Add two integers",
    "parameters": {
      "type": "object",
      "properties": {
        "a": {"type": "integer"},
        "b": {"type": "integer"}
      },
      "required": ["a", "b"]
    }
  },
  {
    "name": "echo",
    "description": "Echo text back",
    "parameters": {
      "type": "object",
      "properties": {"text": {"type": "string"}},
      "required": ["text"]
    }
  }
]`

func addFunc() Function {
	return FunctionFunc(func(ctx context.Context, args Arguments) (string, error) {
		a, _ := args.Int("a")
		b, _ := args.Int("b")
		return strings.TrimSpace(jsonInt(a + b)), nil
	})
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func mustParse(t *testing.T) *Registry {
	t.Helper()
	r, err := Parse([]byte(addDecls), FormatJSON)
	require.NoError(t, err)
	return r
}

func TestNew_MissingFields(t *testing.T) {
	params := map[string]any{"type": "object"}
	cases := []struct {
		name  string
		decl  Declaration
		field string
	}{
		{"no name", Declaration{Description: "d", Parameters: params}, "name"},
		{"no description", Declaration{Name: "f", Parameters: params}, "description"},
		{"no parameters", Declaration{Name: "f", Description: "d"}, "parameters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New([]Declaration{tc.decl})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
			assert.Equal(t, 0, ce.Index)
		})
	}
}

func TestNew_DuplicateName(t *testing.T) {
	params := map[string]any{"type": "object"}
	_, err := New([]Declaration{
		{Name: "f", Description: "one", Parameters: params},
		{Name: "f", Description: "two", Parameters: params},
	})
	require.ErrorIs(t, err, ErrConfig)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNew_BadSchema(t *testing.T) {
	_, err := New([]Declaration{{
		Name:        "f",
		Description: "d",
		Parameters:  map[string]any{"type": 12},
	}})
	require.ErrorIs(t, err, ErrConfig)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"name": "not a list"`), FormatJSON)
	require.ErrorIs(t, err, ErrConfig)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, -1, ce.Index)

	_, err = Parse([]byte("   "), FormatJSON)
	require.ErrorIs(t, err, ErrConfig)
}

func TestBind_UnknownName(t *testing.T) {
	r := mustParse(t)
	err := r.Bind("nope", addFunc())
	require.ErrorIs(t, err, ErrUnknownFunction)
}

func TestBind_LastWins(t *testing.T) {
	r := mustParse(t)
	first := FunctionFunc(func(context.Context, Arguments) (string, error) { return "first", nil })
	second := FunctionFunc(func(context.Context, Arguments) (string, error) { return "second", nil })
	require.NoError(t, r.Bind("echo", first))
	require.NoError(t, r.Bind("echo", second))

	out, err := r.Dispatch(context.Background(), "echo", Arguments{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestDescribe_MemoizedAndPublic(t *testing.T) {
	r := mustParse(t)
	require.NoError(t, r.Bind("add", addFunc()))

	d1 := r.Describe()
	d2 := r.Describe()
	require.Len(t, d1, 2)
	assert.Same(t, &d1[0], &d2[0])
	assert.Equal(t, "add", d1[0].Name)
	assert.Equal(t, "echo", d1[1].Name)

	b, err := json.Marshal(d1)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, m := range raw {
		assert.Len(t, m, 3, "only name, description and parameters are exposed")
		assert.Contains(t, m, "name")
		assert.Contains(t, m, "description")
		assert.Contains(t, m, "parameters")
	}
}

func TestEstimateTokenLength_Memoized(t *testing.T) {
	r := mustParse(t)
	calls := 0
	var seen string
	tok := func(s string) int {
		calls++
		seen = s
		return len(strings.Fields(s))
	}
	n1 := r.EstimateTokenLength(tok)
	n2 := r.EstimateTokenLength(tok)
	assert.Equal(t, n1, n2)
	assert.Equal(t, 1, calls)

	want, err := json.Marshal(r.Describe())
	require.NoError(t, err)
	assert.Equal(t, string(want), seen)
}

func TestEstimateTokenLength_DefaultTokenizer(t *testing.T) {
	r := mustParse(t)
	b, _ := json.Marshal(r.Describe())
	assert.Equal(t, ApproxTokenizer(string(b)), r.EstimateTokenLength(nil))
}

func TestDispatch_Add(t *testing.T) {
	r := mustParse(t)
	require.NoError(t, r.Bind("add", addFunc()))

	args, err := ParseArguments(`{"a": 2, "b": 3}`)
	require.NoError(t, err)
	out, err := r.Dispatch(context.Background(), "add", args)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestDispatch_NotFound(t *testing.T) {
	r := mustParse(t)

	out, err := r.Dispatch(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, "Function missing not found.", out)

	// Declared but never bound.
	out, err = r.Dispatch(context.Background(), "echo", Arguments{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Function echo not found.", out)
}

func TestDispatch_InvalidArguments(t *testing.T) {
	r := mustParse(t)
	called := false
	require.NoError(t, r.Bind("add", FunctionFunc(func(context.Context, Arguments) (string, error) {
		called = true
		return "", nil
	})))

	out, err := r.Dispatch(context.Background(), "add", Arguments{"a": "two"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Invalid arguments for function add: "), out)
	assert.False(t, called)
}

func TestDispatch_NativeGoValues(t *testing.T) {
	r := mustParse(t)
	require.NoError(t, r.Bind("add", addFunc()))

	out, err := r.Dispatch(context.Background(), "add", Arguments{"a": 40, "b": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestDispatch_ImplementationErrorPropagates(t *testing.T) {
	r := mustParse(t)
	boom := errors.New("boom")
	require.NoError(t, r.Bind("echo", FunctionFunc(func(context.Context, Arguments) (string, error) {
		return "", boom
	})))

	_, err := r.Dispatch(context.Background(), "echo", Arguments{"text": "x"})
	require.ErrorIs(t, err, boom)
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, args)

	_, err = ParseArguments("{not json")
	require.Error(t, err)

	args, err = ParseArguments(`{"n": 2.5, "m": 7}`)
	require.NoError(t, err)
	_, ok := args.Int("n")
	assert.False(t, ok)
	m, ok := args.Int("m")
	assert.True(t, ok)
	assert.Equal(t, 7, m)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "functions.yaml")
	yml := `
- name: shout
  description: Upper-case the text
  policy: safe
  parameters:
    type: object
    properties:
      text:
        type: string
    required: [text]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"shout"}, r.Names())
	d, ok := r.Lookup("shout")
	require.True(t, ok)
	assert.Equal(t, PolicySafe, d.Policy)

	require.NoError(t, r.Bind("shout", FunctionFunc(func(_ context.Context, args Arguments) (string, error) {
		s, _ := args.String("text")
		return strings.ToUpper(s), nil
	})))
	out, err := r.Dispatch(context.Background(), "shout", Arguments{"text": "hey"})
	require.NoError(t, err)
	assert.Equal(t, "HEY", out)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "more")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(addDecls), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.yml"), []byte(`
- name: ping
  description: Reply pong
  parameters: {type: object}
`), 0o644))

	r, err := LoadGlob(filepath.Join(dir, "**", "*.{json,yml}"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"add", "echo", "ping"}, r.Names())

	_, err = LoadGlob(filepath.Join(dir, "*.toml"))
	require.ErrorIs(t, err, ErrConfig)
}
