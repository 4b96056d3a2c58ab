package vm

import (
	"fmt"

	"github.com/ms-lang/ms/internal/lexer"
	"github.com/ms-lang/ms/internal/token"
)

const (
	maxLocals = 256
	maxFrames = 64
)

// Local tracks a compile-time local variable binding, adapted from the
// teacher's internal/vm/compiler.go Local struct.
type Local struct {
	Name  string
	Depth int
}

// LoopContext tracks one nested loop's start offset and break fixup list
// (continue jumps straight back to loopStart, so it needs no list),
// adapted from the teacher's compiler_loops.go LoopContext. Saved and
// restored across nested loops so an inner loop never steals an outer
// loop's fixups (spec §4.2).
type LoopContext struct {
	loopStart  int
	breakJumps []int
	scopeDepth int
}

// FunctionType distinguishes top-level script compilation from a nested
// function body (spec §4.2).
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Compiler is a short-lived value owning its own locals vector (spec §9's
// redesign note: "Compiler should be a short-lived value owning its own
// locals vector" rather than a process-wide singleton array).
type Compiler struct {
	source string
	names  *Names

	function *Function
	funcType FunctionType

	locals     []Local
	scopeDepth int

	loopStack []LoopContext

	enclosing *Compiler

	cur, prev token.Token
	lex       *lexer.Lexer

	hadError   bool
	panicMode  bool
	errs       []CompileError

	className string // non-empty while compiling inside a class body

	// recording/replay support a tentative parse of a list-literal's first
	// element: the element is parsed once to decide list-literal vs.
	// comprehension, and if it's a comprehension the tokens consumed are
	// replayed (without re-lexing) to compile the element expression again
	// inside the generated loop body. Go tokens are plain values, so
	// buffering them is simpler and cheaper than the teacher's source-range
	// re-lex trick. The bytecode from the tentative parse is still discarded
	// by truncating the chunk back to where the element started (see
	// listLiteral).
	recording    bool
	recorded     []token.Token
	replayTokens []token.Token
	replayIdx    int
}

// CompileError is a single compile-time diagnostic (spec §7).
type CompileError struct {
	Line, Column int
	Message      string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// NewCompiler creates a compiler for top-level script code.
func NewCompiler(source string, names *Names) *Compiler {
	c := &Compiler{
		source:   source,
		names:    names,
		function: &Function{Name: "<script>", Chunk: NewChunk()},
		funcType: TypeScript,
	}
	c.locals = append(c.locals, Local{Name: "", Depth: 0}) // slot 0 reserved
	c.lex = lexer.New(source)
	c.advance()
	return c
}

func newFunctionCompiler(enclosing *Compiler, name string, ft FunctionType) *Compiler {
	c := &Compiler{
		source:    enclosing.source,
		names:     enclosing.names,
		function:  &Function{Name: name, Chunk: NewChunk()},
		funcType:  ft,
		enclosing: enclosing,
		lex:       enclosing.lex,
		className: enclosing.className,
	}
	selfSlot := ""
	if ft == TypeMethod || ft == TypeInitializer {
		selfSlot = "self"
	}
	c.locals = append(c.locals, Local{Name: selfSlot, Depth: 0})
	c.cur, c.prev = enclosing.cur, enclosing.prev
	return c
}

// Compile compiles a full program (spec §6 "compiles it as a standalone
// chunk"). Returns the script-level Function, or nil and every collected
// CompileError when compilation failed.
func Compile(source string, names *Names) (*Function, []CompileError) {
	c := NewCompiler(source, names)
	for !c.check(token.EOF) {
		c.skipNewlines()
		if c.check(token.EOF) {
			break
		}
		c.statement()
	}
	c.emitOp(OP_NIL)
	c.emitOp(OP_RETURN)
	if c.hadError {
		return nil, c.errs
	}
	return c.function, nil
}

// ---- token stream plumbing ----

func (c *Compiler) advance() {
	c.prev = c.cur
	if c.replayTokens != nil {
		if c.replayIdx < len(c.replayTokens) {
			c.cur = c.replayTokens[c.replayIdx]
			c.replayIdx++
		} else {
			// End of the replayed expression: never pull from the live lexer.
			c.cur = token.Token{Type: token.EOF, Line: c.prev.Line, Column: c.prev.Column}
		}
		return
	}
	for {
		c.cur = c.lex.NextToken()
		if c.recording {
			c.recorded = append(c.recorded, c.cur)
		}
		if c.cur.Type != token.ERROR {
			break
		}
		c.errorAtCurrent(c.cur.Message)
	}
}

// replayExpression recompiles an expression from a previously recorded
// token sequence (tokens[0] becomes the new current token) without
// touching the live lexer stream, then restores the live stream exactly
// where it was.
func (c *Compiler) replayExpression(tokens []token.Token) {
	if len(tokens) == 0 {
		return
	}
	savedCur, savedPrev := c.cur, c.prev
	savedReplay, savedIdx := c.replayTokens, c.replayIdx

	c.cur = tokens[0]
	c.replayTokens = tokens
	c.replayIdx = 1

	c.expression()

	c.cur, c.prev = savedCur, savedPrev
	c.replayTokens, c.replayIdx = savedReplay, savedIdx
}

func (c *Compiler) check(tt token.Type) bool { return c.cur.Type == tt }

func (c *Compiler) match(tt token.Type) bool {
	if !c.check(tt) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(tt token.Type, msg string) {
	if c.cur.Type == tt {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) skipNewlines() {
	for c.check(token.NEWLINE) {
		c.advance()
	}
}

func (c *Compiler) endStatement() {
	// statement terminator: NEWLINE, EOF, DEDENT (block end) or ';'.
	for c.check(token.NEWLINE) || c.check(token.SEMICOLON) {
		c.advance()
	}
}

// ---- error reporting (spec §4.2, §7) ----

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	root := c
	for root.enclosing != nil {
		root = root.enclosing
	}
	root.errs = append(root.errs, CompileError{Line: tok.Line, Column: tok.Column, Message: msg})
}

// synchronize implements panic-mode recovery: skip to a statement
// boundary token (spec §4.2).
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		if c.prev.Type == token.NEWLINE {
			return
		}
		switch c.cur.Type {
		case token.CLASS, token.DEF, token.VAR, token.FOR, token.IF, token.WHILE, token.RETURN, token.IMPORT:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission helpers ----

func (c *Compiler) chunk() *Chunk { return c.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.prev.Line, c.prev.Column)
}

func (c *Compiler) emitOp(op Opcode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitOpU16(op Opcode, operand int) {
	c.emitOp(op)
	c.chunk().WriteUint16(operand, c.prev.Line, c.prev.Column)
}

func (c *Compiler) emitConstant(v Value) {
	idx := c.chunk().AddConstant(v)
	c.emitOpU16(OP_CONSTANT, idx)
}

// emitJump writes op followed by a placeholder 2-byte offset and returns
// the offset of the placeholder, to be patched later (spec §4.3).
func (c *Compiler) emitJump(op Opcode) int {
	c.emitOp(op)
	pos := c.chunk().Len()
	c.chunk().WriteUint16(0xFFFF, c.prev.Line, c.prev.Column)
	return pos
}

func (c *Compiler) patchJump(pos int) {
	// The VM adds the offset to the IP just past the 2-byte operand.
	offset := c.chunk().Len() - pos - 2
	c.chunk().PatchUint16(pos, offset)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OP_LOOP)
	offset := c.chunk().Len() + 2 - loopStart
	c.chunk().WriteUint16(offset, c.prev.Line, c.prev.Column)
}

// ---- scopes & locals (spec §4.2, §8 "Locals scoping") ----

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		c.emitOp(OP_POP)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// endScopeKeepTop implements spec §4.2's "scope with result" discipline
// for comprehensions: locals above the result are popped after saving
// the top of stack, then the result is pushed back.
func (c *Compiler) endScopeKeepTop() {
	c.scopeDepth--
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		n++
		c.locals = c.locals[:len(c.locals)-1]
	}
	for i := 0; i < n; i++ {
		c.emitOp(OP_SWAP)
		c.emitOp(OP_POP)
	}
}

func (c *Compiler) addLocal(name string) int {
	if len(c.locals) >= maxLocals {
		c.error("too many local variables in function")
		return -1
	}
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Depth != -1 && c.locals[i].Depth < c.scopeDepth {
			break
		}
		if c.locals[i].Name == name && c.locals[i].Depth == c.scopeDepth {
			c.error(fmt.Sprintf("duplicate local variable %q", name))
		}
	}
	c.locals = append(c.locals, Local{Name: name, Depth: c.scopeDepth})
	return len(c.locals) - 1
}

func (c *Compiler) declareLocal(name string) int {
	if c.scopeDepth == 0 {
		return -1 // handled as a global
	}
	return c.addLocal(name)
}

func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return i
		}
	}
	return -1
}

// identifierConstant interns name in the shared name table and returns
// its index, for use as a GET/SET_GLOBAL, GET/SET_PROPERTY, CLASS, METHOD
// or DELETE operand.
func (c *Compiler) identifierConstant(name string) int {
	return c.names.Intern(name)
}
