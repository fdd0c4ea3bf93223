package flowrun

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEdge_Kinds(t *testing.T) {
	var zero Edge
	assert.True(t, zero.IsTerminal())
	assert.False(t, zero.IsBranch())
	assert.Equal(t, "stop", zero.String())

	next := Next("b")
	assert.False(t, next.IsTerminal())
	assert.Equal(t, "b", next.Target())
	assert.Equal(t, "-> b", next.String())

	br := Branch("n < 3", "a", "")
	assert.True(t, br.IsBranch())
	assert.False(t, br.IsTerminal())
	assert.Empty(t, br.Target())
	assert.Equal(t, "n < 3", br.Condition())
	onTrue, onFalse := br.Targets()
	assert.Equal(t, "a", onTrue)
	assert.Empty(t, onFalse)
}

func TestEdge_JSON(t *testing.T) {
	edges := map[string]Edge{
		"a": Next("b"),
		"b": Branch("state['n'] < 3", "a", ""),
		"c": {},
		"d": Branch("", "a", "b"),
	}

	data, err := json.Marshal(edges)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"a": "b",
		"b": {"condition": "state['n'] < 3", "true": "a"},
		"c": null,
		"d": {"true": "a", "false": "b"}
	}`, string(data))

	var decoded map[string]Edge
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, edges, decoded)
}

func TestEdge_JSONExplicitNullTargets(t *testing.T) {
	var e Edge
	require.NoError(t, json.Unmarshal([]byte(`{"condition": "x", "true": null, "false": "b"}`), &e))
	assert.Equal(t, Branch("x", "", "b"), e)

	assert.Error(t, json.Unmarshal([]byte(`42`), &e))
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &e))
}

func TestEdge_YAML(t *testing.T) {
	src := `
a: b
b:
  condition: "n < 3"
  true: a
  false: null
c: null
d: {true: a}
`
	var edges map[string]Edge
	require.NoError(t, yaml.Unmarshal([]byte(src), &edges))

	assert.Equal(t, map[string]Edge{
		"a": Next("b"),
		"b": Branch("n < 3", "a", ""),
		"c": {},
		"d": Branch("", "a", ""),
	}, edges)

	out, err := yaml.Marshal(edges)
	require.NoError(t, err)
	var again map[string]Edge
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, edges, again)
}

func TestEdge_YAMLRejectsUnknownShapes(t *testing.T) {
	tests := []string{
		"a: [b]",
		"a: {condition: x, then: b}",
		"a: {condition: x, true: [b]}",
	}
	for _, src := range tests {
		var edges map[string]Edge
		assert.Error(t, yaml.Unmarshal([]byte(src), &edges), src)
	}
}

func TestGraphSpec_Validate(t *testing.T) {
	assert.NoError(t, GraphSpec{Name: "g", Entry: "a"}.Validate())
	assert.ErrorIs(t, GraphSpec{Entry: "a"}.Validate(), ErrInvalidGraph)
	assert.ErrorIs(t, GraphSpec{Name: "g"}.Validate(), ErrInvalidGraph)
}

func TestGraph_Clone(t *testing.T) {
	g := &Graph{
		ID:    "g1",
		Name:  "g",
		Entry: "a",
		Nodes: map[string]any{"a": map[string]any{"tags": []any{"x"}}},
		Edges: map[string]Edge{"a": Next("b")},
	}

	c := g.Clone()
	assert.Equal(t, g, c)

	c.Edges["a"] = Next("z")
	c.Nodes["a"].(map[string]any)["tags"].([]any)[0] = "y"
	assert.Equal(t, Next("b"), g.Edges["a"])
	assert.Equal(t, "x", g.Nodes["a"].(map[string]any)["tags"].([]any)[0])

	assert.Nil(t, (*Graph)(nil).Clone())
	empty := (&Graph{ID: "e"}).Clone()
	assert.NotNil(t, empty.Edges)
}

func TestGraph_EdgeLookup(t *testing.T) {
	g := &Graph{Edges: map[string]Edge{"a": Next("b")}}

	e, ok := g.Edge("a")
	assert.True(t, ok)
	assert.Equal(t, "b", e.Target())

	e, ok = g.Edge("b")
	assert.False(t, ok)
	assert.True(t, e.IsTerminal())
}
