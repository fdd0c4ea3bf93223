/*
Package expr provides the condition language for flowrun conditional edges.

# Overview

expr implements a small, closed boolean expression language evaluated
against a run's state and the tool registry. It is a hand-written tokenizer
and recursive-descent parser; there is no general-purpose interpreter
underneath, so the set of things a condition can do is exactly the grammar
below.

# Expression Syntax

	expr     := or
	or       := and (('or' | '||') and)*
	and      := not (('and' | '&&') not)*
	not      := ('not' | '!') not | compare
	compare  := operand (op operand)*
	op       := '==' | '!=' | '<' | '<=' | '>' | '>=' | 'in' | 'not in' | 'contains' | custom
	operand  := '-'? postfix
	postfix  := primary ('.' ident | '[' expr ']' | '.get' '(' expr (',' expr)? ')')*
	primary  := literal | ident | 'len' '(' expr ')' | '(' expr ')'
	literal  := 'str' | "str" | number | true | false | null

True, False and None are accepted as aliases. Identifiers may use any
Unicode letters.

Comparisons chain: `0 < n <= 3` means `0 < n and n <= 3`, with n evaluated
once. A condition may nest at most 256 levels of parentheses, brackets,
not and unary minus, and may hold at most 4096 tokens; larger conditions
are syntax errors.

# Names

Two roots are always bound:

	state      the run's current state mapping
	tools      the tool registry, name -> tool

Any other bare identifier is looked up as a top-level state key, so
`n < 3` and `state.n < 3` and `state['n'] < 3` are equivalent. Looking up a
missing key with '.' or '[]' is an error; `state.get('n', 0)` returns the
default instead.

# Comparison Rules

	numbers    compared numerically across Go numeric types
	strings    compared lexically
	==, !=     never fail; values of different kinds are unequal, except
	           that true and false equal 1 and 0
	<, >, ...  fail when the operands are not both numbers or both strings
	in         substring, mapping key, or sequence element membership
	s[i]       the i-th character of s; len(s) counts characters

# Failure Handling

Evaluate and Evaluator.Test never fail: a syntax error, an unknown
identifier, a type mismatch or a panicking custom operator all yield false.
Eval and Evaluator.Evaluate return the underlying *SyntaxError or *EvalError
for diagnostics.

# Examples

	expr.Evaluate("state.get('summary_length', 0) < state.get('limit', 100)", state, tools)
	expr.Evaluate("status == 'ready' and count > 0", state, nil)
	expr.Evaluate("'summarize' in tools", state, tools)
	expr.Evaluate("len(state.chunks) >= 2", state, nil)

# Custom Operators

Register custom word operators:

	e := expr.New(
	    expr.WithCustomOperator("matches", func(left, right any) bool {
	        matched, _ := regexp.MatchString(fmt.Sprint(right), fmt.Sprint(left))
	        return matched
	    }),
	)
	ok := e.Test("name matches '^test.*'", state, nil)

# Truthiness

A condition's final value is tested for truthiness:

  - nil: false
  - bool: the boolean value
  - string, mapping, sequence: false if empty
  - numbers: false if zero
  - other types: true
*/
package expr
