package vm

import "github.com/ms-lang/ms/internal/token"

// statement dispatches on the leading token, adapted from the teacher's
// compiler_statements.go recursive-descent statement dispatcher (spec
// §4.2's statement list).
func (c *Compiler) statement() {
	switch {
	case c.check(token.AT):
		c.decoratedStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.WITH):
		c.withStatement()
	case c.match(token.MATCH):
		c.matchStatement()
	case c.match(token.DEF):
		c.defStatement()
	case c.match(token.CLASS):
		c.classStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.PASS):
		c.endStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.ASSERT):
		c.assertStatement()
	case c.match(token.DEL):
		c.delStatement()
	case c.match(token.IMPORT):
		c.importStatement()
	case c.match(token.FROM):
		c.fromImportStatement()
	case c.match(token.VAR):
		c.varStatement()
	case c.match(token.TRY):
		c.tryStatement()
	case c.match(token.RAISE):
		c.raiseStatement()
	default:
		c.expressionStatement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

// block consumes an indented suite: NEWLINE INDENT stmt+ DEDENT, matching
// the lexer's synthetic layout tokens (spec §4.1/§4.2).
func (c *Compiler) block() {
	c.skipNewlines()
	c.consume(token.INDENT, "expected an indented block")
	for !c.check(token.DEDENT) && !c.check(token.EOF) {
		c.skipNewlines()
		if c.check(token.DEDENT) || c.check(token.EOF) {
			break
		}
		c.statement()
	}
	c.match(token.DEDENT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emitOp(OP_POP) // spec §8: every expression statement leaves stack height unchanged
	c.endStatement()
}

// ---- if/elif/else ----

func (c *Compiler) ifStatement() {
	c.expression()
	c.consume(token.COLON, "expected ':' after if condition")

	thenJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitOp(OP_POP)
	c.block()

	var endJumps []int
	endJumps = append(endJumps, c.emitJump(OP_JUMP))
	c.patchJump(thenJump)
	c.emitOp(OP_POP)

	// elif/else sit at the same indentation as `if`, i.e. right after the
	// block's DEDENT with only NEWLINEs (never INDENT) between.
	c.skipNewlines()

	for c.match(token.ELIF) {
		c.expression()
		c.consume(token.COLON, "expected ':' after elif condition")
		branchJump := c.emitJump(OP_JUMP_IF_FALSE)
		c.emitOp(OP_POP)
		c.block()
		endJumps = append(endJumps, c.emitJump(OP_JUMP))
		c.patchJump(branchJump)
		c.emitOp(OP_POP)
	}

	if c.match(token.ELSE) {
		c.consume(token.COLON, "expected ':' after else")
		c.block()
	}

	for _, j := range endJumps {
		c.patchJump(j)
	}
}

// ---- with ----

func (c *Compiler) withStatement() {
	c.expression()
	c.consume(token.AS, "expected 'as' in with-statement")
	c.consume(token.IDENT, "expected bound name in with-statement")
	name := c.prev.Lexeme
	c.consume(token.COLON, "expected ':' after with-statement")

	// Keep a copy of the context manager below the __enter__ result: CALL_ENTER
	// consumes the top copy and replaces it with __enter__'s return value, so
	// the bottom copy survives as <with-mgr> for CALL_EXIT to dispatch
	// __exit__ on at block end.
	c.beginScope()
	c.emitOp(OP_DUP)
	c.addLocal("<with-mgr>")
	c.emitOp(OP_CALL_ENTER)
	c.declareOrBind(name)
	c.block()
	mgrSlot := c.resolveLocal("<with-mgr>")
	c.emitOpU16(OP_GET_LOCAL, mgrSlot)
	c.emitOp(OP_CALL_EXIT)
	c.emitOp(OP_POP) // discard __exit__'s return value
	c.endScope()
}

// declareOrBind adds name as a local if inside a scope, otherwise defines
// it as a global, consuming whatever value currently sits on the stack.
func (c *Compiler) declareOrBind(name string) {
	if c.scopeDepth > 0 {
		c.addLocal(name)
		return
	}
	c.emitOpU16(OP_DEFINE_GLOBAL, c.identifierConstant(name))
}

// ---- match/case ----

// matchStatement desugars to a JUMP_IF_FALSE chain comparing the subject
// against each case pattern (spec's supplemented match forms: literal,
// wildcard `_`, binding `case x:`, and a guard `case x if cond:`).
func (c *Compiler) matchStatement() {
	c.expression()
	c.consume(token.COLON, "expected ':' after match subject")
	c.skipNewlines()
	c.consume(token.INDENT, "expected indented case block")

	c.beginScope()
	subjectSlot := c.addLocal("<match-subject>")

	var endJumps []int
	for c.check(token.CASE) {
		c.advance()
		mismatchJumps := c.compileCase(subjectSlot)
		if len(mismatchJumps) == 0 {
			// Wildcard/binding pattern with no guard always matches, so
			// anything after it in the match body is unreachable.
			break
		}
		endJumps = append(endJumps, c.emitJump(OP_JUMP))
		for _, j := range mismatchJumps {
			c.patchJump(j)
		}
		c.emitOp(OP_POP) // exactly one outstanding bool regardless of which gate failed
		c.skipNewlines()
	}

	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.match(token.DEDENT)
	c.endScope()
}

// compileCase compiles one `case pattern [if guard]:` arm and returns the
// list of forward jumps to the next case (empty if the pattern always
// matches with no guard). Every gate pushes exactly one bool and is
// immediately popped on its true path, so regardless of how many gates
// are chained, exactly one bool is outstanding at any mismatch landing.
func (c *Compiler) compileCase(subjectSlot int) []int {
	var mismatchJumps []int

	isWildcard := c.check(token.IDENT) && c.cur.Lexeme == "_"
	isBinding := c.check(token.IDENT) && !isWildcard

	switch {
	case isWildcard:
		c.advance()
	case isBinding:
		c.advance()
		name := c.prev.Lexeme
		c.emitOpU16(OP_GET_LOCAL, subjectSlot)
		c.addLocal(name)
	default:
		c.emitOpU16(OP_GET_LOCAL, subjectSlot)
		c.parsePrecedence(PrecOr)
		c.emitOp(OP_EQUAL)
		j := c.emitJump(OP_JUMP_IF_FALSE)
		c.emitOp(OP_POP)
		mismatchJumps = append(mismatchJumps, j)
	}

	if c.match(token.IF) {
		c.expression()
		j := c.emitJump(OP_JUMP_IF_FALSE)
		c.emitOp(OP_POP)
		mismatchJumps = append(mismatchJumps, j)
	}

	c.consume(token.COLON, "expected ':' after case pattern")
	c.block()

	return mismatchJumps
}

// ---- def / functions ----

func (c *Compiler) defStatement() {
	name, idx := c.defStatementBody()
	c.defineVariable(name, idx)
}

// defStatementBody compiles the function but leaves binding it to the
// caller, so decoratedStatement can apply decorators to the function
// value on the stack before it is ever stored.
func (c *Compiler) defStatementBody() (name string, idx int) {
	c.consume(token.IDENT, "expected function name")
	name = c.prev.Lexeme
	idx = c.identifierConstant(name)
	c.function0(name, TypeFunction)
	return name, idx
}

// defineVariable stores whatever value is on top of the stack into name,
// as a local if nested, otherwise as a global.
func (c *Compiler) defineVariable(name string, idx int) {
	if c.scopeDepth > 0 {
		c.addLocal(name)
		return
	}
	c.emitOpU16(OP_DEFINE_GLOBAL, idx)
}

// function0 compiles `(params):` followed by an indented body into a new
// child Function, and emits it as a constant onto the enclosing chunk
// (spec §4.2 "Functions").
func (c *Compiler) function0(name string, ft FunctionType) {
	sub := newFunctionCompiler(c, name, ft)
	sub.beginScope()

	// All token consumption for the signature+body happens on sub: c and
	// sub share the same underlying lexer, so only one of them may drive
	// it at a time (sub's cur/prev are resynced back onto c below).
	sub.consume(token.LPAREN, "expected '(' after function name")
	arity := 0
	var defaults []Value
	sawDefault := false
	selfPending := ft == TypeMethod || ft == TypeInitializer
	if !sub.check(token.RPAREN) {
		for {
			sub.advance()
			if sub.prev.Type != token.IDENT {
				sub.error("expected parameter name")
				break
			}
			pname := sub.prev.Lexeme
			if selfPending {
				// A method's first parameter names the receiver, which the
				// VM places in slot 0; it is not counted in the arity.
				selfPending = false
				sub.locals[0].Name = pname
			} else {
				sub.addLocal(pname)
				arity++
			}
			if sub.match(token.ASSIGN) {
				sawDefault = true
				defVal := sub.constantExpression()
				defaults = append(defaults, defVal)
			} else if sawDefault {
				sub.error("non-default argument follows default argument")
			}
			if !sub.match(token.COMMA) {
				break
			}
			if sub.check(token.RPAREN) {
				break
			}
		}
	}
	sub.consume(token.RPAREN, "expected ')' after parameters")
	sub.consume(token.COLON, "expected ':' after function signature")

	sub.function.Arity = arity
	sub.function.Defaults = defaults
	sub.function.Name = name

	sub.block()
	sub.emitOp(OP_NIL)
	sub.emitOp(OP_RETURN)

	c.cur, c.prev = sub.cur, sub.prev
	c.lex = sub.lex
	if sub.hadError {
		c.hadError = true
		c.errs = append(c.errs, sub.errs...)
	}

	c.emitConstant(ObjVal(sub.function))
}

// constantExpression compiles a default-argument expression and folds it
// to a constant Value where possible; non-literal defaults are reduced to
// their emitted constant operand (defaults are restricted to literals by
// convention, matching the teacher's parameter-default handling).
func (c *Compiler) constantExpression() Value {
	start := c.chunk().Len()
	c.parsePrecedence(PrecTernary)
	// The expression was compiled as OP_CONSTANT <idx> (or OP_NIL/TRUE/FALSE);
	// recover the value directly from the chunk's tail rather than
	// re-evaluating, then discard the emitted bytes since defaults are
	// materialized at CALL time, not at def time.
	v := c.lastEmittedConstant(start)
	c.chunk().Code = c.chunk().Code[:start]
	c.chunk().Lines = c.chunk().Lines[:start]
	c.chunk().Columns = c.chunk().Columns[:start]
	return v
}

func (c *Compiler) lastEmittedConstant(start int) Value {
	code := c.chunk().Code
	if start >= len(code) {
		return NilVal()
	}
	switch Opcode(code[start]) {
	case OP_CONSTANT:
		idx := c.chunk().ReadUint16(start + 1)
		return c.chunk().Constants[idx]
	case OP_TRUE:
		return BoolVal(true)
	case OP_FALSE:
		return BoolVal(false)
	case OP_NIL:
		return NilVal()
	}
	return NilVal()
}

// ---- classes ----

func (c *Compiler) classStatement() {
	name, idx := c.classStatementBody()
	c.defineVariable(name, idx)
}

// classStatementBody compiles the class but leaves binding it to the
// caller, mirroring defStatementBody so decorators can wrap it too.
func (c *Compiler) classStatementBody() (name string, idx int) {
	c.consume(token.IDENT, "expected class name")
	name = c.prev.Lexeme
	idx = c.identifierConstant(name)
	c.emitOpU16(OP_CLASS, idx)

	hasParent := false
	if c.match(token.LPAREN) {
		if !c.check(token.RPAREN) {
			c.consume(token.IDENT, "expected parent class name")
			c.namedVariable(c.prev.Lexeme, false)
			hasParent = true
		}
		c.consume(token.RPAREN, "expected ')' after parent class")
	}
	if hasParent {
		c.emitOp(OP_INHERIT)
	}
	c.consume(token.COLON, "expected ':' after class header")

	prevClass := c.className
	c.className = name

	c.skipNewlines()
	c.consume(token.INDENT, "expected indented class body")
	for !c.check(token.DEDENT) && !c.check(token.EOF) {
		c.skipNewlines()
		if c.check(token.DEDENT) || c.check(token.EOF) {
			break
		}
		if c.match(token.PASS) {
			c.endStatement()
			continue
		}
		c.consume(token.DEF, "expected method definition in class body")
		c.consume(token.IDENT, "expected method name")
		mname := c.prev.Lexeme
		midx := c.identifierConstant(mname)
		ft := TypeMethod
		if mname == "__init__" {
			ft = TypeInitializer
		}
		c.function0(mname, ft)
		c.emitOpU16(OP_METHOD, midx)
		c.skipNewlines()
	}
	c.match(token.DEDENT)

	c.className = prevClass
	return name, idx
}

// ---- decorators ----

// decoratedStatement compiles `@expr` lines followed by a def or class,
// applying each decorator to the not-yet-bound function/class value on
// the stack before the final name binding (spec §4.2 "Decorators").
func (c *Compiler) decoratedStatement() {
	var depth int
	for c.match(token.AT) {
		c.expression()
		c.endStatement()
		depth++
	}

	var name string
	var idx int
	switch {
	case c.match(token.DEF):
		name, idx = c.defStatementBody()
	case c.match(token.CLASS):
		name, idx = c.classStatementBody()
	default:
		c.error("expected 'def' or 'class' after decorator")
		return
	}

	// Each application pops the current top (target) and the decorator
	// directly below it, pushing the call result in its place -- so the
	// stack always shrinks by one and the decorator-to-target distance is
	// always 1, regardless of how many decorators are stacked. The one
	// nearest `def`/`class` in source is consumed first (innermost-applies-
	// first, matching Python decorator order).
	for i := 0; i < depth; i++ {
		c.emitByte(byte(OP_CALL_DECORATOR))
		c.emitByte(1)
	}
	c.defineVariable(name, idx)
}

// ---- return / assert / del / raise ----

func (c *Compiler) returnStatement() {
	if c.funcType == TypeScript {
		c.error("'return' outside function")
	}
	if c.check(token.NEWLINE) || c.check(token.EOF) || c.check(token.SEMICOLON) {
		c.emitOp(OP_NIL)
	} else if c.funcType == TypeInitializer {
		c.error("'return' with a value is not allowed in __init__")
		c.expression()
	} else {
		c.expression()
	}
	c.emitOp(OP_RETURN)
	c.endStatement()
}

func (c *Compiler) assertStatement() {
	c.expression()
	c.emitOp(OP_ASSERT)
	c.endStatement()
}

// delStatement supports both `del name` and `del obj[key]` (spec's
// supplemented del-on-container-element feature).
func (c *Compiler) delStatement() {
	c.consume(token.IDENT, "expected name after 'del'")
	name := c.prev.Lexeme
	if c.match(token.LBRACKET) {
		c.namedVariable(name, false)
		c.expression()
		c.consume(token.RBRACKET, "expected ']' after del index")
		c.emitOp(OP_DELETE_INDEX)
		c.endStatement()
		return
	}
	c.emitOpU16(OP_DELETE, c.identifierConstant(name))
	c.endStatement()
}

func (c *Compiler) raiseStatement() {
	c.expression()
	c.emitOp(OP_RAISE)
	c.endStatement()
}

// ---- try/except/finally ----

// tryStatement compiles try/except/finally. A single TRY_BEGIN handler has
// no per-exception-type dispatch (spec's RAISE always targets the nearest
// handler, not a matching one), so only the first except clause ever
// receives control at runtime; further except clauses are accepted
// syntactically but are unreachable, matching match/case's first-match
// convention. Both the normal-completion and except paths converge before
// `finally`, which always runs.
func (c *Compiler) tryStatement() {
	c.consume(token.COLON, "expected ':' after try")
	handlerJump := c.emitJump(OP_TRY_BEGIN)
	c.block()
	c.emitOp(OP_TRY_END)
	var convergeJumps []int
	convergeJumps = append(convergeJumps, c.emitJump(OP_JUMP))
	c.patchJump(handlerJump)

	hasExcept := false
	c.skipNewlines()
	for c.match(token.EXCEPT) {
		hasExcept = true
		boundName := ""
		if c.check(token.IDENT) {
			c.advance()
			boundName = c.prev.Lexeme
		}
		c.consume(token.COLON, "expected ':' after except clause")
		c.beginScope()
		if boundName != "" {
			c.declareOrBind(boundName)
		} else {
			c.emitOp(OP_POP)
		}
		c.block()
		c.endScope()
		convergeJumps = append(convergeJumps, c.emitJump(OP_JUMP))
		c.skipNewlines()
	}

	// A bare try/finally with no except clause still lands here with the
	// exception value pushed by the handler; nothing else consumes it, so
	// it must be popped before falling into finally (spec §8 stack
	// discipline — an unpopped value would shift every later local's slot).
	if !hasExcept {
		c.emitOp(OP_POP)
	}

	for _, j := range convergeJumps {
		c.patchJump(j)
	}

	if c.match(token.FINALLY) {
		c.consume(token.COLON, "expected ':' after finally")
		c.block()
	}
}

// ---- import / from-import ----

func (c *Compiler) importStatement() {
	c.consume(token.IDENT, "expected module name")
	name := c.prev.Lexeme
	idx := c.identifierConstant(name)
	c.emitOpU16(OP_LOAD_MODULE, idx)
	c.defineVariable(name, idx)
	c.endStatement()
}

func (c *Compiler) fromImportStatement() {
	c.consume(token.IDENT, "expected module name")
	modName := c.prev.Lexeme
	modIdx := c.identifierConstant(modName)
	c.consume(token.IMPORT, "expected 'import' after module name")

	c.emitOpU16(OP_LOAD_MODULE, modIdx)
	moduleSlot := -1
	if c.scopeDepth > 0 {
		moduleSlot = c.addLocal("<module>")
	} else {
		c.emitOpU16(OP_DEFINE_GLOBAL, c.identifierConstant("<module:"+modName+">"))
	}

	for {
		c.consume(token.IDENT, "expected imported name")
		attr := c.prev.Lexeme
		if moduleSlot != -1 {
			c.emitOpU16(OP_GET_LOCAL, moduleSlot)
		} else {
			c.emitOpU16(OP_GET_GLOBAL, c.identifierConstant("<module:"+modName+">"))
		}
		c.emitOpU16(OP_GET_PROPERTY, c.identifierConstant(attr))
		c.defineVariable(attr, c.identifierConstant(attr))
		if !c.match(token.COMMA) {
			break
		}
	}
	c.endStatement()
}

// ---- var ----

func (c *Compiler) varStatement() {
	c.consume(token.IDENT, "expected variable name")
	name := c.prev.Lexeme
	idx := c.identifierConstant(name)
	if c.match(token.ASSIGN) {
		c.expression()
	} else {
		c.emitOp(OP_NIL)
	}
	c.defineVariable(name, idx)
	c.endStatement()
}
