package flowrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRegistry_Validation(t *testing.T) {
	r := NewNodeRegistry()
	ok := NodeFunc(func(Context, State, Tools) (State, error) { return nil, nil })

	assert.ErrorIs(t, r.Register("", ok), ErrInvalidNode)
	assert.ErrorIs(t, r.Register("a", nil), ErrInvalidNode)
	assert.ErrorIs(t, r.Register("a", NodeFunc(nil)), ErrInvalidNode)
	assert.ErrorIs(t, r.RegisterFunc("a", nil), ErrInvalidNode)
	assert.Zero(t, r.Len())

	require.NoError(t, r.Register("b", ok))
	require.NoError(t, r.RegisterFunc("a", ok))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	r.Unregister("a")
	_, found := r.Lookup("a")
	assert.False(t, found)
	assert.Equal(t, 1, r.Len())
}

func TestNodeRegistry_ReplaceUnderConcurrency(t *testing.T) {
	r := NewNodeRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.RegisterFunc(fmt.Sprintf("n%d", i%5), func(Context, State, Tools) (State, error) {
				return State{"i": i}, nil
			})
		}()
		go func() {
			defer wg.Done()
			r.Lookup("n0")
			r.Names()
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, r.Len())
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry()
	assert.ErrorIs(t, r.Register("", 1), ErrInvalidNode)
	assert.ErrorIs(t, r.Register("x", nil), ErrInvalidNode)

	require.NoError(t, r.Register("upper", func(s string) string { return s }))
	require.NoError(t, r.Register("limit", 10))
	assert.Equal(t, []string{"limit", "upper"}, r.Names())

	v, ok := r.Lookup("limit")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	snap := r.Map()
	snap["limit"] = 99
	v, _ = r.Lookup("limit")
	assert.Equal(t, 10, v, "Map returns a snapshot")
}

func TestNewContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "v")
	ctx := NewContext(parent, "run-1", "node-a")

	assert.Equal(t, "run-1", ctx.RunID())
	assert.Equal(t, "node-a", ctx.NodeID())
	assert.Equal(t, 1, ctx.Step())
	assert.NotNil(t, ctx.Logger())
	assert.Equal(t, "v", ctx.Value(key{}))
}

func TestErrors(t *testing.T) {
	inner := errors.New("boom")
	err := error(&NodeError{NodeID: "a", Step: 3, Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "node a (step 3): boom", err.Error())

	var ne *NodeError
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &ne)
	assert.Equal(t, 3, ne.Step)

	p := &PanicError{NodeID: "b", Value: "oops"}
	assert.Equal(t, "node b panicked: oops", p.Error())
}
