package vm

import (
	"github.com/ms-lang/ms/internal/token"
)

// Precedence levels for the Pratt expression parser, adapted from the
// teacher's internal/vm/compiler_expressions.go precedence table and
// extended with PrecTernary per spec §4.2's single-pass grammar.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary // `if`/`else` conditional expression
	PrecOr
	PrecAnd
	PrecNot
	PrecComparison
	PrecBitwise
	PrecTerm   // + -
	PrecFactor // * / // %
	PrecUnary  // unary - not
	PrecPower  // **
	PrecCall   // . () []
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LPAREN:      {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		token.LBRACKET:    {prefix: (*Compiler).listLiteral, infix: (*Compiler).index, precedence: PrecCall},
		token.LBRACE:      {prefix: (*Compiler).dictOrSetLiteral},
		token.DOT:         {infix: (*Compiler).dot, precedence: PrecCall},

		token.MINUS: {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		token.PLUS:  {infix: (*Compiler).binary, precedence: PrecTerm},
		token.SLASH: {infix: (*Compiler).binary, precedence: PrecFactor},
		token.SLASH_SLASH: {infix: (*Compiler).binary, precedence: PrecFactor},
		token.STAR:  {infix: (*Compiler).binary, precedence: PrecFactor},
		token.PERCENT: {infix: (*Compiler).binary, precedence: PrecFactor},
		token.STAR_STAR: {infix: (*Compiler).power, precedence: PrecPower},

		token.BANG:  {prefix: (*Compiler).unary},
		token.NOT:   {prefix: (*Compiler).unary, precedence: PrecNot},
		token.NOT_EQ: {infix: (*Compiler).binary, precedence: PrecComparison},
		token.EQ:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.GT:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.GE:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.LT:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.LE:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.IN:     {infix: (*Compiler).binary, precedence: PrecComparison},
		token.IS:     {infix: (*Compiler).binary, precedence: PrecComparison},

		token.IDENT:  {prefix: (*Compiler).identifier},
		token.STRING: {prefix: (*Compiler).stringLiteral},
		token.FSTRING: {prefix: (*Compiler).fstringLiteral},
		token.INT:    {prefix: (*Compiler).numberLiteral},
		token.FLOAT:  {prefix: (*Compiler).numberLiteral},
		token.TRUE:   {prefix: (*Compiler).literal},
		token.FALSE:  {prefix: (*Compiler).literal},
		token.NONE:   {prefix: (*Compiler).literal},
		token.NIL:    {prefix: (*Compiler).literal},

		token.AND: {infix: (*Compiler).and, precedence: PrecAnd},
		token.OR:  {infix: (*Compiler).or, precedence: PrecOr},
		token.IF:  {infix: (*Compiler).ternary, precedence: PrecTernary},
	}
}

func getRule(tt token.Type) parseRule { return rules[tt] }

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

// parsePrecedence is the core Pratt loop, adapted from the teacher's
// compiler_expressions.go ParsePrecedence.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule := getRule(c.prev.Type)
	if rule.prefix == nil {
		c.error("expected expression")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.prefix(c, canAssign)

	for {
		r := getRule(c.cur.Type)
		if prec > r.precedence {
			break
		}
		c.advance()
		infix := getRule(c.prev.Type).infix
		if infix == nil {
			break
		}
		infix(c, canAssign)
	}

	if canAssign && c.match(token.ASSIGN) {
		c.error("invalid assignment target")
	}
}

// ---- literals ----

func (c *Compiler) numberLiteral(canAssign bool) {
	lex := c.prev.Lexeme
	if c.prev.Type == token.FLOAT {
		f := parseFloat(lex)
		c.emitConstant(FloatVal(f))
		return
	}
	n := parseInt(lex)
	c.emitConstant(IntVal(n))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	c.emitConstant(ObjVal(&String{Value: c.prev.Lexeme}))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Type {
	case token.TRUE:
		c.emitOp(OP_TRUE)
	case token.FALSE:
		c.emitOp(OP_FALSE)
	case token.NONE, token.NIL:
		c.emitOp(OP_NIL)
	}
}

// ---- grouping / tuples ----

func (c *Compiler) grouping(canAssign bool) {
	if c.check(token.RPAREN) {
		c.advance()
		c.emitOpU16(OP_BUILD_TUPLE, 0)
		return
	}
	c.expression()
	n := 1
	isTuple := false
	for c.match(token.COMMA) {
		isTuple = true
		if c.check(token.RPAREN) {
			break
		}
		c.expression()
		n++
	}
	c.consume(token.RPAREN, "expected ')' after expression")
	if isTuple {
		c.emitOpU16(OP_BUILD_TUPLE, n)
	}
}

// ---- unary / binary / power ----

func (c *Compiler) unary(canAssign bool) {
	opType := c.prev.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.MINUS:
		c.emitOp(OP_NEGATE)
	case token.NOT, token.BANG:
		c.emitOp(OP_NOT)
	}
}

func binaryOpcode(tt token.Type) Opcode {
	switch tt {
	case token.PLUS:
		return OP_ADD
	case token.MINUS:
		return OP_SUBTRACT
	case token.STAR:
		return OP_MULTIPLY
	case token.SLASH:
		return OP_DIVIDE
	case token.SLASH_SLASH:
		return OP_FLOOR_DIVIDE
	case token.PERCENT:
		return OP_MODULO
	case token.GT:
		return OP_GREATER
	case token.GE:
		return OP_GREATER_EQUAL
	case token.LT:
		return OP_LESS
	case token.LE:
		return OP_LESS_EQUAL
	case token.IN:
		return OP_IN
	}
	return OP_EQUAL
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.prev.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.NOT_EQ:
		c.emitOp(OP_EQUAL)
		c.emitOp(OP_NOT)
	case token.EQ, token.IS:
		c.emitOp(OP_EQUAL)
	default:
		c.emitOp(binaryOpcode(opType))
	}
}

// power is right-associative: a ** b ** c == a ** (b ** c), so it recurses
// at its own precedence rather than precedence+1.
func (c *Compiler) power(canAssign bool) {
	c.parsePrecedence(PrecPower)
	c.emitOp(OP_POWER)
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitOp(OP_POP)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	endJump := c.emitJump(OP_JUMP_IF_TRUE)
	c.emitOp(OP_POP)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

// ternary implements Python-style `a if cond else b`. It fires as an infix
// parselet on IF; by that point `a` is already sitting on the stack. Both
// branches must leave exactly one value, per spec §8's stack-discipline
// invariant.
func (c *Compiler) ternary(canAssign bool) {
	// stack: [a]
	c.parsePrecedence(PrecOr) // parse cond -> stack: [a, cond]

	thenJump := c.emitJump(OP_JUMP_IF_FALSE) // peeks cond
	c.emitOp(OP_POP)                         // cond truthy: drop cond -> [a]
	elseSkip := c.emitJump(OP_JUMP)

	c.patchJump(thenJump) // cond falsy lands here, stack still [a, cond]
	c.emitOp(OP_POP)      // drop cond -> [a]
	c.emitOp(OP_POP)      // drop a, the false branch uses b instead -> []
	c.consume(token.ELSE, "expected 'else' in conditional expression")
	c.parsePrecedence(PrecTernary) // parse b -> [b]

	c.patchJump(elseSkip) // true branch lands here with [a] already on stack
}

// ---- identifiers, assignment, augmented assignment ----

func (c *Compiler) identifier(canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	slot := c.resolveLocal(name)

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		if slot != -1 {
			c.emitOpU16(OP_SET_LOCAL, slot)
		} else {
			c.emitOpU16(OP_SET_GLOBAL, c.identifierConstant(name))
		}
		return
	}

	if canAssign {
		if augOp, ok := c.matchAssignOp(); ok {
			c.loadVariable(slot, name)
			c.expression()
			c.emitOp(augOp)
			if slot != -1 {
				c.emitOpU16(OP_SET_LOCAL, slot)
			} else {
				c.emitOpU16(OP_SET_GLOBAL, c.identifierConstant(name))
			}
			return
		}
	}

	c.loadVariable(slot, name)
}

func (c *Compiler) loadVariable(slot int, name string) {
	if slot != -1 {
		c.emitOpU16(OP_GET_LOCAL, slot)
	} else {
		c.emitOpU16(OP_GET_GLOBAL, c.identifierConstant(name))
	}
}

// matchAssignOp consumes a `+=`-style token if present and returns the
// arithmetic opcode it desugars to (load, compute, store -- spec's
// supplemented augmented-assignment feature, no new opcodes required).
func (c *Compiler) matchAssignOp() (Opcode, bool) {
	switch c.cur.Type {
	case token.PLUS_ASSIGN:
		c.advance()
		return OP_ADD, true
	case token.MINUS_ASSIGN:
		c.advance()
		return OP_SUBTRACT, true
	case token.STAR_ASSIGN:
		c.advance()
		return OP_MULTIPLY, true
	case token.SLASH_ASSIGN:
		c.advance()
		return OP_DIVIDE, true
	case token.SLASH_SLASH_ASSIGN:
		c.advance()
		return OP_FLOOR_DIVIDE, true
	case token.PERCENT_ASSIGN:
		c.advance()
		return OP_MODULO, true
	}
	return 0, false
}

// ---- call / dot / index ----

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList(token.RPAREN)
	c.emitByte(byte(OP_CALL))
	c.emitByte(byte(argc))
}

func (c *Compiler) argumentList(closing token.Type) int {
	n := 0
	if !c.check(closing) {
		c.expression()
		n++
		for c.match(token.COMMA) {
			if c.check(closing) {
				break
			}
			c.expression()
			n++
		}
	}
	c.consume(closing, "expected closing delimiter after arguments")
	return n
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "expected property name after '.'")
	name := c.prev.Lexeme
	idx := c.identifierConstant(name)

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emitOpU16(OP_SET_PROPERTY, idx)
		return
	}
	if c.check(token.LPAREN) {
		c.advance()
		c.emitOpU16(OP_GET_PROPERTY, idx)
		argc := c.argumentList(token.RPAREN)
		c.emitByte(byte(OP_CALL))
		c.emitByte(byte(argc))
		return
	}
	c.emitOpU16(OP_GET_PROPERTY, idx)
}

// index handles both `a[i]` (get/set) and `a[lo:hi:step]` slicing (spec
// §4.5's SLICE_GET, with Nil placeholders standing in for omitted parts).
func (c *Compiler) index(canAssign bool) {
	if c.match(token.COLON) {
		c.emitOp(OP_NIL)
		c.finishSlice(canAssign)
		return
	}
	c.expression()
	if c.match(token.COLON) {
		c.finishSlice(canAssign)
		return
	}
	c.consume(token.RBRACKET, "expected ']' after index")

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emitOp(OP_INDEX_SET)
		return
	}
	c.emitOp(OP_INDEX_GET)
}

// finishSlice is entered with the low bound already pushed (or OP_NIL for
// an omitted one) and the leading ':' already consumed.
func (c *Compiler) finishSlice(canAssign bool) {
	if c.check(token.COLON) || c.check(token.RBRACKET) {
		c.emitOp(OP_NIL)
	} else {
		c.expression()
	}
	if c.match(token.COLON) {
		if c.check(token.RBRACKET) {
			c.emitOp(OP_NIL)
		} else {
			c.expression()
		}
	} else {
		c.emitOp(OP_NIL)
	}
	c.consume(token.RBRACKET, "expected ']' after slice")
	c.emitOp(OP_SLICE_GET)
}

// ---- list literals & comprehensions ----

func (c *Compiler) listLiteral(canAssign bool) {
	if c.match(token.RBRACKET) {
		c.emitOpU16(OP_BUILD_LIST, 0)
		return
	}

	start := c.chunk().Len()
	firstTok := c.cur
	c.recording = true
	c.recorded = []token.Token{firstTok}
	c.expression()
	c.recording = false

	if c.check(token.FOR) {
		elemTokens := c.recorded[:len(c.recorded)-1] // drop trailing FOR lookahead
		c.chunk().Code = c.chunk().Code[:start]
		c.chunk().Lines = c.chunk().Lines[:start]
		c.chunk().Columns = c.chunk().Columns[:start]
		c.compileListComprehension(elemTokens)
		return
	}

	n := 1
	for c.match(token.COMMA) {
		if c.check(token.RBRACKET) {
			break
		}
		c.expression()
		n++
	}
	c.consume(token.RBRACKET, "expected ']' after list literal")
	c.emitOpU16(OP_BUILD_LIST, n)
}

// compileListComprehension emits `[acc := []; for x in iter: [if cond:]
// acc.append(elem)]`, where elemTokens is the already-lexed token sequence
// for elem (captured by listLiteral's tentative parse). The loop variable,
// iterator and index are true VM-stack locals, reserved above the
// accumulator, following the teacher's locals-above-stack discipline.
func (c *Compiler) compileListComprehension(elemTokens []token.Token) {
	c.beginScope()
	c.emitOpU16(OP_BUILD_LIST, 0)
	accSlot := c.addLocal("<comp-acc>")

	c.beginScope()
	c.consume(token.FOR, "expected 'for' in comprehension")
	c.consume(token.IDENT, "expected loop variable name")
	varName := c.prev.Lexeme
	c.consume(token.IN, "expected 'in' in comprehension")
	c.parsePrecedence(PrecOr) // iterable; stops before a filter's `if`
	iterSlot := c.addLocal("<comp-iter>")
	c.emitConstant(IntVal(0))
	idxSlot := c.addLocal("<comp-idx>")
	c.emitOp(OP_NIL)
	varSlot := c.addLocal(varName)

	loopStart := c.chunk().Len()
	c.emitOp(OP_FOR_ITER_LOCAL)
	c.chunk().WriteUint16(varSlot, c.prev.Line, c.prev.Column)
	c.chunk().WriteUint16(iterSlot, c.prev.Line, c.prev.Column)
	c.chunk().WriteUint16(idxSlot, c.prev.Line, c.prev.Column)
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitOp(OP_POP)

	hasFilter := c.match(token.IF)
	var filterSkip int
	if hasFilter {
		c.expression()
		filterSkip = c.emitJump(OP_JUMP_IF_FALSE)
		c.emitOp(OP_POP)
	}

	c.emitOpU16(OP_GET_LOCAL, accSlot)
	c.replayExpression(elemTokens)
	c.emitOp(OP_LIST_APPEND)

	if hasFilter {
		c.emitLoop(loopStart)
		c.patchJump(filterSkip)
		c.emitOp(OP_POP)
		c.emitLoop(loopStart)
	} else {
		c.emitLoop(loopStart)
	}

	c.patchJump(exitJump)
	c.emitOp(OP_POP)

	c.endScope() // drops iterSlot/idxSlot/varSlot
	c.emitOpU16(OP_GET_LOCAL, accSlot)
	c.consume(token.RBRACKET, "expected ']' after comprehension")
	c.endScopeKeepTop() // drops accSlot, keeps the GET_LOCAL copy
}

// ---- dict / set literals ----

func (c *Compiler) dictOrSetLiteral(canAssign bool) {
	if c.match(token.RBRACE) {
		c.emitOpU16(OP_BUILD_DICT, 0)
		return
	}

	c.expression()
	if c.match(token.COLON) {
		c.expression()
		n := 1
		for c.match(token.COMMA) {
			if c.check(token.RBRACE) {
				break
			}
			c.expression()
			c.consume(token.COLON, "expected ':' in dict literal")
			c.expression()
			n++
		}
		c.consume(token.RBRACE, "expected '}' after dict literal")
		c.emitOpU16(OP_BUILD_DICT, n)
		return
	}

	n := 1
	for c.match(token.COMMA) {
		if c.check(token.RBRACE) {
			break
		}
		c.expression()
		n++
	}
	c.consume(token.RBRACE, "expected '}' after set literal")
	c.emitOpU16(OP_BUILD_SET, n)
}

// ---- f-strings ----

type fstringSegment struct {
	text   string
	isExpr bool
}

// splitFString scans a raw f-string body for balanced `{expr}` segments,
// leaving everything else as literal text.
func splitFString(src string) []fstringSegment {
	var segs []fstringSegment
	var buf []byte
	i := 0
	for i < len(src) {
		ch := src[i]
		if ch == '{' && i+1 < len(src) && src[i+1] == '{' {
			buf = append(buf, '{')
			i += 2
			continue
		}
		if ch == '}' && i+1 < len(src) && src[i+1] == '}' {
			buf = append(buf, '}')
			i += 2
			continue
		}
		if ch == '{' {
			if len(buf) > 0 {
				segs = append(segs, fstringSegment{text: string(buf)})
				buf = nil
			}
			depth := 1
			j := i + 1
			for j < len(src) && depth > 0 {
				switch src[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						break
					}
				}
				if depth > 0 {
					j++
				}
			}
			segs = append(segs, fstringSegment{text: src[i+1 : j], isExpr: true})
			i = j + 1
			continue
		}
		buf = append(buf, ch)
		i++
	}
	if len(buf) > 0 {
		segs = append(segs, fstringSegment{text: string(buf)})
	}
	return segs
}

// fstringLiteral compiles each {expr} segment with an isolated sub-compiler
// over that segment's source text, then concatenates all segments with
// OP_ADD. Sub-compilers share the locals vector and scope depth so
// expressions can reference the enclosing function's locals.
func (c *Compiler) fstringLiteral(canAssign bool) {
	segs := splitFString(c.prev.Lexeme)
	if len(segs) == 0 {
		c.emitConstant(ObjVal(&String{Value: ""}))
		return
	}

	emitted := 0
	for _, seg := range segs {
		if !seg.isExpr {
			if seg.text == "" {
				continue
			}
			c.emitConstant(ObjVal(&String{Value: seg.text}))
		} else {
			sub := NewCompiler(seg.text, c.names)
			sub.function = c.function
			sub.funcType = c.funcType
			sub.scopeDepth = c.scopeDepth
			sub.locals = c.locals
			sub.className = c.className
			sub.expression()
			c.locals = sub.locals
			if sub.hadError {
				c.hadError = true
				c.errs = append(c.errs, sub.errs...)
			}
		}
		emitted++
		if emitted > 1 {
			c.emitOp(OP_ADD)
		}
	}
	if emitted == 0 {
		c.emitConstant(ObjVal(&String{Value: ""}))
	}
}
