package expr

import (
	"fmt"
)

// Root identifiers bound for every evaluation.
const (
	RootState = "state"
	RootTools = "tools"
)

// env holds the bindings for a single evaluation.
// A fresh env is created per call so nothing leaks between evaluations.
type env struct {
	state map[string]any
	tools map[string]any
}

type node interface {
	eval(e *env) (any, error)
}

type literalNode struct {
	value any
}

func (n *literalNode) eval(*env) (any, error) { return n.value, nil }

// identNode resolves a root name or, failing that, a top-level state key.
type identNode struct {
	name string
}

func (n *identNode) eval(e *env) (any, error) {
	switch n.name {
	case RootState:
		return e.state, nil
	case RootTools:
		return e.tools, nil
	}
	if v, ok := e.state[n.name]; ok {
		return v, nil
	}
	return nil, &EvalError{Msg: fmt.Sprintf("unknown identifier %q", n.name)}
}

type indexNode struct {
	target node
	key    node
}

func (n *indexNode) eval(e *env) (any, error) {
	target, err := n.target.eval(e)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(e)
	if err != nil {
		return nil, err
	}
	v, found, err := lookup(target, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &EvalError{Msg: fmt.Sprintf("key %v not found", key)}
	}
	return v, nil
}

// getNode is the mapping .get(key[, default]) form; missing keys yield the default.
type getNode struct {
	target node
	key    node
	def    node
}

func (n *getNode) eval(e *env) (any, error) {
	target, err := n.target.eval(e)
	if err != nil {
		return nil, err
	}
	if !isMapping(target) {
		return nil, &EvalError{Msg: fmt.Sprintf("get called on non-mapping %T", target)}
	}
	key, err := n.key.eval(e)
	if err != nil {
		return nil, err
	}
	v, found, err := lookup(target, key)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	if n.def == nil {
		return nil, nil
	}
	return n.def.eval(e)
}

type lenNode struct {
	arg node
}

func (n *lenNode) eval(e *env) (any, error) {
	v, err := n.arg.eval(e)
	if err != nil {
		return nil, err
	}
	l, ok := length(v)
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("len of unsized %T", v)}
	}
	return int64(l), nil
}

type notNode struct {
	inner node
}

func (n *notNode) eval(e *env) (any, error) {
	v, err := n.inner.eval(e)
	if err != nil {
		return nil, err
	}
	return !IsTruthy(v), nil
}

type negNode struct {
	inner node
}

func (n *negNode) eval(e *env) (any, error) {
	v, err := n.inner.eval(e)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	}
	if f, ok := toNumber(v); ok {
		return -f, nil
	}
	return nil, &EvalError{Msg: fmt.Sprintf("cannot negate %T", v)}
}

// logicalNode short-circuits like Python: operands are tested for truthiness,
// the result is always a bool.
type logicalNode struct {
	and         bool
	left, right node
}

func (n *logicalNode) eval(e *env) (any, error) {
	l, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	lt := IsTruthy(l)
	if n.and && !lt {
		return false, nil
	}
	if !n.and && lt {
		return true, nil
	}
	r, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return IsTruthy(r), nil
}

type compareNode struct {
	op          string
	left, right node
}

func (n *compareNode) eval(e *env) (any, error) {
	l, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return Compare(l, r, n.op)
}

type customNode struct {
	name        string
	fn          BinaryOp
	left, right node
}

func (n *customNode) eval(e *env) (any, error) {
	l, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return n.fn(l, r), nil
}

// compareLink is one operator and right operand of a comparison.
type compareLink struct {
	op     string
	custom BinaryOp
	right  node
}

func (l compareLink) node(left node) node {
	if l.custom != nil {
		return &customNode{name: l.op, fn: l.custom, left: left, right: l.right}
	}
	return &compareNode{op: l.op, left: left, right: l.right}
}

func (l compareLink) apply(left, right any) (bool, error) {
	if l.custom != nil {
		return l.custom(left, right), nil
	}
	return Compare(left, right, l.op)
}

// chainNode is a comparison chain such as a < b <= c. Each link compares
// against the previous right operand and the chain stops at the first false.
type chainNode struct {
	first node
	links []compareLink
}

func (n *chainNode) eval(e *env) (any, error) {
	left, err := n.first.eval(e)
	if err != nil {
		return nil, err
	}
	for _, link := range n.links {
		right, err := link.right.eval(e)
		if err != nil {
			return nil, err
		}
		ok, err := link.apply(left, right)
		if err != nil || !ok {
			return false, err
		}
		left = right
	}
	return true, nil
}
