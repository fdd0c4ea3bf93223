package expr

import "fmt"

// Conditions come from graph definitions, so their size is bounded: maxDepth
// caps parser recursion and maxTokens caps the tree evaluation walks.
const (
	maxDepth  = 256
	maxTokens = 4096
)

// parser is a recursive-descent parser over the closed condition grammar.
// Precedence, lowest first: or, and, not, comparison, unary minus, postfix.
type parser struct {
	toks      []token
	pos       int
	depth     int
	customOps map[string]BinaryOp
}

func parse(src string, customOps map[string]BinaryOp) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, customOps: customOps}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s %q", tok.kind, tok.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// accept consumes the next token if it is an operator or keyword matching text.
func (p *parser) accept(text string) bool {
	tok := p.peek()
	if (tok.kind == tokOp || tok.kind == tokIdent) && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if p.accept(text) {
		return nil
	}
	tok := p.peek()
	return p.errorf(tok, "expected %q, found %s %q", text, tok.kind, tok.text)
}

// enter records one more level of nesting at tok.
func (p *parser) enter(tok token) error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf(tok, "expression nested deeper than %d levels", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("or") || p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.accept("and") || p.accept("&&") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if tok := p.peek(); p.accept("not") || p.accept("!") {
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

// parseComparison parses an operand followed by any number of comparison
// operators. A chain such as 0 < n < 3 means 0 < n and n < 3, with each
// middle operand evaluated once.
func (p *parser) parseComparison() (node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	var links []compareLink
	for {
		link, ok, err := p.parseCompareOp()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if link.right, err = p.parseUnary(); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	switch len(links) {
	case 0:
		return first, nil
	case 1:
		return links[0].node(first), nil
	default:
		return &chainNode{first: first, links: links}, nil
	}
}

// parseCompareOp consumes a comparison operator if one is next.
func (p *parser) parseCompareOp() (compareLink, bool, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokOp && isComparisonOp(tok.text):
	case tok.kind == tokIdent && (tok.text == "in" || tok.text == "contains"):
	case tok.kind == tokIdent && tok.text == "not":
		// "not in" is the only binary use of "not".
		p.next()
		if err := p.expect("in"); err != nil {
			return compareLink{}, false, err
		}
		return compareLink{op: "not in"}, true, nil
	case tok.kind == tokIdent && p.customOps[tok.text] != nil:
		p.next()
		return compareLink{op: tok.text, custom: p.customOps[tok.text]}, true, nil
	default:
		return compareLink{}, false, nil
	}
	p.next()
	return compareLink{op: tok.text}, true, nil
}

func (p *parser) parseUnary() (node, error) {
	if tok := p.peek(); p.accept("-") {
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{inner: inner}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("."):
			tok := p.next()
			if tok.kind != tokIdent {
				return nil, p.errorf(tok, "expected attribute name after '.'")
			}
			if tok.text == "get" && p.peek().kind == tokOp && p.peek().text == "(" {
				call, err := p.parseGetArgs(n)
				if err != nil {
					return nil, err
				}
				n = call
				continue
			}
			n = &indexNode{target: n, key: &literalNode{value: tok.text}}
		case p.peek().text == "[" && p.peek().kind == tokOp:
			key, err := p.parseGroup("[", "]")
			if err != nil {
				return nil, err
			}
			n = &indexNode{target: n, key: key}
		default:
			return n, nil
		}
	}
}

// parseGroup parses open expr close as one nesting level.
func (p *parser) parseGroup(open, close string) (node, error) {
	tok := p.peek()
	if err := p.expect(open); err != nil {
		return nil, err
	}
	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(close); err != nil {
		return nil, err
	}
	return inner, nil
}

// parseGetArgs parses the argument list of target.get(key[, default]),
// starting at the opening parenthesis.
func (p *parser) parseGetArgs(target node) (node, error) {
	tok := p.next()
	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()

	key, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	call := &getNode{target: target, key: key}
	if p.accept(",") {
		def, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.def = def
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &literalNode{value: tok.num}, nil
	case tokString:
		return &literalNode{value: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "true", "True":
			return &literalNode{value: true}, nil
		case "false", "False":
			return &literalNode{value: false}, nil
		case "null", "nil", "None":
			return &literalNode{value: nil}, nil
		case "and", "or", "not", "in", "contains":
			return nil, p.errorf(tok, "unexpected keyword %q", tok.text)
		case "len":
			if next := p.peek(); next.kind == tokOp && next.text == "(" {
				arg, err := p.parseGroup("(", ")")
				if err != nil {
					return nil, err
				}
				return &lenNode{arg: arg}, nil
			}
		}
		return &identNode{name: tok.text}, nil
	case tokOp:
		if tok.text == "(" {
			p.pos--
			return p.parseGroup("(", ")")
		}
	}
	return nil, p.errorf(tok, "unexpected %s %q", tok.kind, tok.text)
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}
