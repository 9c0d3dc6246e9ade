package patch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libraryDoc() map[string]any {
	return map[string]any{
		"@id": "lib",
		"contains": map[string]any{
			"@id":     "book",
			"title":   "The Republic",
			"creator": "Plato",
		},
	}
}

func TestOperationValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr error
	}{
		{"add", Operation{Op: OpAdd, Path: "/a", Value: 1}, nil},
		{"root replace", Operation{Op: OpReplace, Path: "", Value: map[string]any{}}, nil},
		{"move", Operation{Op: OpMove, Path: "/b", From: "/a"}, nil},
		{"unknown op", Operation{Op: "merge", Path: "/a"}, ErrUnknownOp},
		{"relative path", Operation{Op: OpRemove, Path: "a"}, ErrInvalidPath},
		{"move without from", Operation{Op: OpMove, Path: "/b"}, ErrMissingFrom},
		{"copy with bad from", Operation{Op: OpCopy, Path: "/b", From: "a"}, ErrInvalidPath},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPatchValidateReportsIndex(t *testing.T) {
	p := Patch{
		{Op: OpAdd, Path: "/a", Value: 1},
		{Op: "bogus", Path: "/b"},
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 1")
}

func TestOperationMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Operation{Op: OpReplace, Path: "/a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"replace","path":"/a","value":null}`, string(data))

	data, err = json.Marshal(Operation{Op: OpRemove, Path: "/a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"remove","path":"/a"}`, string(data))

	data, err = json.Marshal(Operation{Op: OpMove, Path: "/b", From: "/a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"move","path":"/b","from":"/a"}`, string(data))
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte(`[{"op":"add","path":"/email","value":"library@example.com"},{"op":"remove","path":"/x"}]`))
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, OpAdd, p[0].Op)
	assert.Equal(t, "library@example.com", p[0].Value)

	empty, err := Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	null, err := Decode([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, null)

	_, err = Decode([]byte(`{"op":"add"}`))
	assert.Error(t, err)
}

func TestDecodeRequiresValueMember(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"add without value", `[{"op":"add","path":"/a"}]`, ErrMissingValue},
		{"replace without value", `[{"op":"replace","path":"/a"}]`, ErrMissingValue},
		{"test without value", `[{"op":"test","path":"/a"}]`, ErrMissingValue},
		{"explicit null", `[{"op":"replace","path":"/a","value":null}]`, nil},
		{"remove needs none", `[{"op":"remove","path":"/a"}]`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decode([]byte(tc.data))
			require.NoError(t, err)
			err = p.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestEngineRejectsAddWithoutValue(t *testing.T) {
	p, err := Decode([]byte(`[{"op":"add","path":"/email"}]`))
	require.NoError(t, err)

	_, err = NewEngine().Apply(context.Background(), map[string]any{"name": "a"}, p)
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestPointer(t *testing.T) {
	assert.Equal(t, "", Pointer())
	assert.Equal(t, "/contains/0/title", Pointer("contains", "0", "title"))
	assert.Equal(t, "/a~1b/c~0d", Pointer("a/b", "c~d"))
	assert.Equal(t, "http:~1~1example.org~1name", PathEscape("http://example.org/name"))
}

func TestEngineApply(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	t.Run("replace nested field", func(t *testing.T) {
		doc := libraryDoc()
		out, err := e.Apply(ctx, doc, Patch{{Op: OpReplace, Path: "/contains/title", Value: "X"}})
		require.NoError(t, err)

		want := libraryDoc()
		want["contains"].(map[string]any)["title"] = "X"
		assert.Equal(t, want, out)
		assert.Equal(t, libraryDoc(), doc, "input must not be modified")
	})

	t.Run("operations apply in order", func(t *testing.T) {
		doc := map[string]any{"list": []any{"a", "b", "c"}}
		out, err := e.Apply(ctx, doc, Patch{
			{Op: OpRemove, Path: "/list/0"},
			{Op: OpReplace, Path: "/list/0", Value: "B"},
			{Op: OpMove, From: "/list/1", Path: "/list/0"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"list": []any{"c", "B"}}, out)
	})

	t.Run("empty patch", func(t *testing.T) {
		out, err := e.Apply(ctx, libraryDoc(), Patch{})
		require.NoError(t, err)
		assert.Equal(t, libraryDoc(), out)
	})

	t.Run("remove missing path fails", func(t *testing.T) {
		_, err := e.Apply(ctx, libraryDoc(), Patch{{Op: OpRemove, Path: "/missing"}})
		assert.Error(t, err)
	})

	t.Run("remove missing path allowed", func(t *testing.T) {
		lenient := NewEngine(WithAllowMissingRemove())
		out, err := lenient.Apply(ctx, libraryDoc(), Patch{{Op: OpRemove, Path: "/missing"}})
		require.NoError(t, err)
		assert.Equal(t, libraryDoc(), out)
	})

	t.Run("failed test aborts", func(t *testing.T) {
		_, err := e.Apply(ctx, libraryDoc(), Patch{{Op: OpTest, Path: "/@id", Value: "other"}})
		assert.Error(t, err)
	})

	t.Run("invalid operation rejected before applying", func(t *testing.T) {
		_, err := e.Apply(ctx, libraryDoc(), Patch{{Op: "merge", Path: "/a"}})
		assert.ErrorIs(t, err, ErrUnknownOp)
	})
}

func TestEngineCompareRoundTrip(t *testing.T) {
	ctx := context.Background()
	from := map[string]any{
		"@id":   "lib",
		"name":  "Old",
		"tags":  []any{"a", "b", "c"},
		"inner": map[string]any{"x": "1", "y": "2"},
	}
	to := map[string]any{
		"@id":   "lib",
		"email": "library@example.com",
		"tags":  []any{"a", "c"},
		"inner": map[string]any{"x": "10"},
	}

	engines := map[string]*Engine{
		"default":     NewEngine(),
		"moves":       NewEngine(WithMoves()),
		"rationalize": NewEngine(WithRationalize()),
	}

	for name, e := range engines {
		t.Run(name, func(t *testing.T) {
			p, err := e.Compare(ctx, from, to)
			require.NoError(t, err)
			require.NotEmpty(t, p)
			require.NoError(t, p.Validate())

			out, err := e.Apply(ctx, from, p)
			require.NoError(t, err)
			assert.Equal(t, to, out)
		})
	}
}

func TestEngineCompareIdentical(t *testing.T) {
	p, err := NewEngine().Compare(context.Background(), libraryDoc(), libraryDoc())
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestEngineHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Apply(ctx, libraryDoc(), Patch{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewEngine().Compare(ctx, libraryDoc(), libraryDoc())
	assert.ErrorIs(t, err, context.Canceled)
}
