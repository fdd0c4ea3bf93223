package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned when an expression is blank.
var ErrEmptyExpression = errors.New("empty expression")

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// EvalError reports a failure while evaluating a well-formed expression,
// such as an unknown identifier or comparing a string with a number.
type EvalError struct {
	Msg string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return "eval: " + e.Msg
}

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
// An Evaluator is immutable after New and safe for concurrent use.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary word operator, used as
// `left name right`. Names that collide with keywords are ignored.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if fn == nil || isKeyword(name) {
			return
		}
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Program is a parsed expression that can be evaluated repeatedly.
// It holds no bindings; state and tools are supplied per call.
type Program struct {
	source string
	root   node
}

// String returns the source expression.
func (p *Program) String() string {
	return p.source
}

// Compile parses an expression into a Program.
func (e *Evaluator) Compile(expression string) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}
	root, err := parse(expression, e.customOps)
	if err != nil {
		return nil, err
	}
	return &Program{source: expression, root: root}, nil
}

// Run evaluates the program against state and tools.
// Panics raised by custom operators are returned as errors.
func (p *Program) Run(state, tools map[string]any) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = &EvalError{Msg: fmt.Sprintf("panic: %v", r)}
		}
	}()

	v, err := p.root.eval(&env{state: state, tools: tools})
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// Evaluate parses and evaluates an expression against state and tools.
func (e *Evaluator) Evaluate(expression string, state, tools map[string]any) (bool, error) {
	prog, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	return prog.Run(state, tools)
}

// Test evaluates an expression and fails closed: any syntax or evaluation
// error yields false.
func (e *Evaluator) Test(expression string, state, tools map[string]any) bool {
	ok, err := e.Evaluate(expression, state, tools)
	return err == nil && ok
}

var defaultEvaluator = New()

// Eval evaluates an expression using the default evaluator (no custom operators).
func Eval(expression string, state, tools map[string]any) (bool, error) {
	return defaultEvaluator.Evaluate(expression, state, tools)
}

// Evaluate is the fail-closed form of Eval: errors yield false.
func Evaluate(expression string, state, tools map[string]any) bool {
	return defaultEvaluator.Test(expression, state, tools)
}

func isKeyword(name string) bool {
	switch name {
	case "and", "or", "not", "in", "contains", "len", "get",
		"true", "false", "True", "False", "null", "nil", "None",
		RootState, RootTools:
		return true
	}
	return name == ""
}
