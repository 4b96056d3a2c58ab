package vm

import "github.com/ms-lang/ms/internal/token"

// pushLoop and popLoop save/restore the per-loop start offset and break
// fixup list, adapted from the teacher's compiler_loops.go LoopContext
// save/restore discipline so a `break` inside a nested loop never patches
// an outer loop's jumps.
func (c *Compiler) pushLoop(loopStart int) *LoopContext {
	c.loopStack = append(c.loopStack, LoopContext{
		loopStart:  loopStart,
		scopeDepth: c.scopeDepth,
	})
	return &c.loopStack[len(c.loopStack)-1]
}

func (c *Compiler) popLoop() {
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (c *Compiler) currentLoop() *LoopContext {
	if len(c.loopStack) == 0 {
		return nil
	}
	return &c.loopStack[len(c.loopStack)-1]
}

// whileStatement compiles `while cond:` followed by an indented block
// (spec §4.2).
func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	loop := c.pushLoop(loopStart)

	c.expression()
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitOp(OP_POP)

	c.consume(token.COLON, "expected ':' after while condition")
	c.block()

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(OP_POP)

	for _, pos := range loop.breakJumps {
		c.patchJump(pos)
	}
	c.popLoop()
}

// forStatement compiles `for x in iter:` as a genuine local-slot loop
// (spec §4.3's FOR_ITER_LOCAL), matching the same three-reserved-slot
// shape used by list comprehensions.
func (c *Compiler) forStatement() {
	c.consume(token.IDENT, "expected loop variable name")
	varName := c.prev.Lexeme

	c.consume(token.IN, "expected 'in' after for-loop variable")
	c.beginScope()
	c.expression()
	iterSlot := c.addLocal("<for-iter>")
	c.emitConstant(IntVal(0))
	idxSlot := c.addLocal("<for-idx>")
	c.emitOp(OP_NIL)
	varSlot := c.addLocal(varName)

	c.consume(token.COLON, "expected ':' after for-loop iterable")

	loopStart := c.chunk().Len()
	loop := c.pushLoop(loopStart)

	c.emitOp(OP_FOR_ITER_LOCAL)
	c.chunk().WriteUint16(varSlot, c.prev.Line, c.prev.Column)
	c.chunk().WriteUint16(iterSlot, c.prev.Line, c.prev.Column)
	c.chunk().WriteUint16(idxSlot, c.prev.Line, c.prev.Column)
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitOp(OP_POP)

	c.block()

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(OP_POP)

	for _, pos := range loop.breakJumps {
		c.patchJump(pos)
	}
	c.popLoop()
	c.endScope()
}

// breakStatement and continueStatement record a forward jump to be
// patched once the enclosing loop finishes compiling.
func (c *Compiler) breakStatement() {
	loop := c.currentLoop()
	if loop == nil {
		c.error("'break' outside loop")
		return
	}
	c.popScopeLocals(loop.scopeDepth)
	pos := c.emitJump(OP_JUMP)
	loop.breakJumps = append(loop.breakJumps, pos)
	c.endStatement()
}

// continueStatement jumps straight back to the loop's re-check point
// (loopStart already re-runs FOR_ITER_LOCAL or the while condition, so no
// separate fixup list is needed the way break's forward jump requires).
func (c *Compiler) continueStatement() {
	loop := c.currentLoop()
	if loop == nil {
		c.error("'continue' outside loop")
		return
	}
	c.popScopeLocals(loop.scopeDepth)
	c.emitLoop(loop.loopStart)
	c.endStatement()
}

// popScopeLocals emits the OP_POPs needed to unwind the stack down to
// targetDepth without touching the compiler's own locals bookkeeping
// (used by break/continue, which jump out of nested blocks but must
// leave the Compiler's view of scope depth untouched for the rest of the
// enclosing block to compile correctly).
func (c *Compiler) popScopeLocals(targetDepth int) {
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].Depth > targetDepth; i-- {
		c.emitOp(OP_POP)
	}
}
