// Package compiler implements the single-pass Pratt parser and bytecode
// emitter described by spec.md §4.2: one traversal of the token stream
// produces a top-level Function (and, transitively, every nested Function
// reachable from it) with no separate AST or name-resolution phase.
package compiler

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/loxscript/loxvm/lang/chunk"
	"github.com/loxscript/loxvm/lang/scanner"
	"github.com/loxscript/loxvm/lang/token"
)

// ErrCompile is returned by Compile when one or more compile-time errors
// were reported; the individual diagnostics were already written to the
// stderr writer passed to Compile, in the exact format spec.md §6 requires.
var ErrCompile = errors.New("compile error")

// Interner is the explicit replacement for the global VM singleton spec.md
// §9's design notes call for refactoring away: the compiler needs somewhere
// to intern string literals (so that two literals with identical content
// are the same *chunk.ObjString, spec.md §8 invariant 3) without reaching
// for a package-level VM.
type Interner interface {
	Intern(s string) *chunk.ObjString
}

// maxLocals and maxUpvalues are both capped at UINT8_COUNT (256): slot and
// upvalue indices are encoded as a single byte in the instruction stream.
const (
	maxLocals   = 256
	maxUpvalues = 256
)

type funcType int

const (
	typeFunction funcType = iota
	typeScript
)

type local struct {
	name       string
	depth      int // -1 means "declared, not yet initialised"
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// compiler holds the per-function compilation state: the synthetic scope
// stack of locals, the upvalue table, and a link to the enclosing function's
// compiler so nested functions can resolve captures (spec.md §3's
// "Compiler state" struct).
type compiler struct {
	enclosing *compiler
	parser    *parser
	function  *chunk.Function
	funcType  funcType

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef

	loopStarts []int // for future break/continue support; unused today
}

type parser struct {
	scanner  *scanner.Scanner
	interner Interner
	stderr   io.Writer

	current   token.Token
	previous  token.Token
	hadError  bool
	panicMode bool
}

// Compile parses and compiles source into a top-level Function (the
// nameless, arity-0 script). On any compile-time error it returns
// (nil, ErrCompile) having already printed each diagnostic, once, to stderr.
func Compile(source string, interner Interner, stderr io.Writer) (*chunk.Function, error) {
	p := &parser{scanner: scanner.New(source), interner: interner, stderr: stderr}
	c := newCompiler(p, nil, typeScript, "")

	p.advance()
	for !p.match(token.EOF) {
		c.declaration()
	}

	fn := c.endCompiler()
	if p.hadError {
		return nil, ErrCompile
	}
	return fn, nil
}

func newCompiler(p *parser, enclosing *compiler, ft funcType, name string) *compiler {
	c := &compiler{
		parser:    p,
		enclosing: enclosing,
		funcType:  ft,
		function:  &chunk.Function{Name: name},
	}
	// Slot 0 is reserved for "the currently executing function" (spec.md §3);
	// Lox has no methods so it is never read back, only occupied.
	c.locals = append(c.locals, local{name: "", depth: 0})
	return c
}

func (c *compiler) currentChunk() *chunk.Chunk { return &c.function.Chunk }

func (c *compiler) line() int { return c.parser.previous.Line }

// --- parser primitives -----------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.Scan()
		if p.current.Type != token.Error {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(t token.Type) bool { return p.current.Type == t }

func (p *parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t token.Type, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

// errorAt reports msg at tok's position in the exact byte-for-byte format
// spec.md §6 requires, gated by panicMode so that one malformed construct
// does not produce a cascade of errors.
func (p *parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	fmt.Fprintf(p.stderr, "[line %d] Error", tok.Line)
	switch tok.Type {
	case token.EOF:
		fmt.Fprint(p.stderr, " at end")
	case token.Error:
		// no location suffix: the lexeme itself is already the message
	default:
		fmt.Fprintf(p.stderr, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(p.stderr, ": %s\n", msg)
	p.hadError = true
}

// synchronize discards tokens until a likely statement boundary, so that
// compilation can keep going and surface further independent errors.
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.Semicolon {
			return
		}
		switch p.current.Type {
		case token.Class, token.Fun, token.Var, token.For, token.If, token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// --- emission helpers -------------------------------------------------------

func (c *compiler) emitByte(b byte)            { c.currentChunk().Write(b, c.line()) }
func (c *compiler) emitOp(op chunk.Opcode)      { c.currentChunk().WriteOp(op, c.line()) }
func (c *compiler) emitBytes(op chunk.Opcode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *compiler) emitReturn() {
	c.emitOp(chunk.OpNil)
	c.emitOp(chunk.OpReturn)
}

func (c *compiler) emitConstant(v chunk.Value) {
	c.currentChunk().WriteConstant(v, c.line())
}

func (c *compiler) emitJump(op chunk.Opcode) int {
	c.emitOp(op)
	offset := len(c.currentChunk().Code)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return offset
}

func (c *compiler) patchJump(offset int) {
	if !c.currentChunk().PatchJump(offset) {
		c.parser.error("Too much code to jump over.")
	}
}

func (c *compiler) emitLoop(loopStart int) {
	if !c.currentChunk().EmitLoop(loopStart, c.line()) {
		c.parser.error("Loop body too large.")
	}
}

// emitGlobalOp emits one of the three global-variable opcodes, promoting to
// the "_LONG" form on overflow (spec.md §9 open question, resolved).
func (c *compiler) emitGlobalOp(shortOp, longOp chunk.Opcode, nameIdx int) {
	c.currentChunk().WriteGlobalOp(shortOp, longOp, nameIdx, c.line())
}

func (c *compiler) makeConstant(v chunk.Value) int {
	idx := c.currentChunk().AddConstant(v)
	if idx > 0xffffff {
		c.parser.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *compiler) endCompiler() *chunk.Function {
	c.emitReturn()
	return c.function
}

// --- scopes ------------------------------------------------------------

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// --- declarations & statements -------------------------------------------

func (c *compiler) declaration() {
	switch {
	case c.parser.match(token.Fun):
		c.funDeclaration()
	case c.parser.match(token.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.parser.panicMode {
		c.parser.synchronize()
	}
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function_(typeFunction)
	c.defineVariable(global)
}

func (c *compiler) function_(ft funcType) {
	p := c.parser
	fc := newCompiler(p, c, ft, p.previous.Lexeme)

	fc.beginScope()
	p.consume(token.LeftParen, "Expect '(' after function name.")
	if !p.check(token.RightParen) {
		for {
			fc.function.Arity++
			if fc.function.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := fc.parseVariable("Expect parameter name.")
			fc.defineVariable(paramConst)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after parameters.")
	p.consume(token.LeftBrace, "Expect '{' before function body.")
	fc.block()

	fn := fc.endCompiler()
	fn.UpvalueCount = len(fc.upvalues)

	idx := c.makeConstant(fn)
	if idx > 0xff {
		p.error("Too many constants in one chunk.")
	}
	c.emitBytes(chunk.OpClosure, byte(idx))
	for _, uv := range fc.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.parser.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.parser.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *compiler) statement() {
	p := c.parser
	switch {
	case p.match(token.Print):
		c.printStatement()
	case p.match(token.For):
		c.forStatement()
	case p.match(token.If):
		c.ifStatement()
	case p.match(token.Return):
		c.returnStatement()
	case p.match(token.While):
		c.whileStatement()
	case p.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	p := c.parser
	for !p.check(token.RightBrace) && !p.check(token.EOF) {
		c.declaration()
	}
	p.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *compiler) printStatement() {
	c.expression()
	c.parser.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *compiler) returnStatement() {
	p := c.parser
	if c.funcType == typeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	p.consume(token.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.parser.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *compiler) ifStatement() {
	p := c.parser
	p.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if p.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	p := c.parser
	loopStart := len(c.currentChunk().Code)
	p.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *compiler) forStatement() {
	p := c.parser
	c.beginScope()
	p.consume(token.LeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(token.Semicolon):
		// no initializer
	case p.match(token.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.currentChunk().Code)
	exitJump := -1
	if !p.match(token.Semicolon) {
		c.expression()
		p.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !p.match(token.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.currentChunk().Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		p.consume(token.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope()
}

// --- variables -----------------------------------------------------------

func (c *compiler) parseVariable(errMsg string) int {
	c.parser.consume(token.Identifier, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.parser.previous.Lexeme)
}

func (c *compiler) identifierConstant(name string) int {
	return c.makeConstant(c.parser.interner.Intern(name))
}

func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.parser.previous.Lexeme
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name {
			c.parser.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) addLocal(name string) {
	if len(c.locals) >= maxLocals {
		c.parser.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *compiler) defineVariable(global int) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitGlobalOp(chunk.OpDefineGlobal, chunk.OpDefineGlobalLong, global)
}

func (c *compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				c.parser.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if l := c.enclosing.resolveLocal(name); l != -1 {
		c.enclosing.locals[l].isCaptured = true
		return c.addUpvalue(byte(l), true)
	}
	if u := c.enclosing.resolveUpvalue(name); u != -1 {
		return c.addUpvalue(byte(u), false)
	}
	return -1
}

func (c *compiler) addUpvalue(index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		c.parser.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(c.upvalues) - 1
}

func (c *compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.Opcode
	arg := c.resolveLocal(name)
	if arg != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else if arg = c.resolveUpvalue(name); arg != -1 {
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = c.identifierConstant(name)
		if canAssign && c.parser.match(token.Equal) {
			c.expression()
			c.emitGlobalOp(chunk.OpSetGlobal, chunk.OpSetGlobalLong, arg)
			return
		}
		c.emitGlobalOp(chunk.OpGetGlobal, chunk.OpGetGlobalLong, arg)
		return
	}

	if canAssign && c.parser.match(token.Equal) {
		c.expression()
		c.emitBytes(setOp, byte(arg))
		return
	}
	c.emitBytes(getOp, byte(arg))
}

// --- expressions -----------------------------------------------------------

func (c *compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *compiler) parsePrecedence(prec precedence) {
	p := c.parser
	p.advance()
	prefixRule := getRule(p.previous.Type).prefix
	if prefixRule == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infixRule := getRule(p.previous.Type).infix
		infixRule(c, canAssign)
	}

	if canAssign && p.match(token.Equal) {
		p.error("Invalid assignment target.")
	}
}

func (c *compiler) grouping(bool) {
	c.expression()
	c.parser.consume(token.RightParen, "Expect ')' after expression.")
}

func (c *compiler) number(bool) {
	lexeme := c.parser.previous.Lexeme
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		c.parser.error("Invalid number literal.")
		return
	}
	c.emitConstant(chunk.Number(v))
}

func (c *compiler) str(bool) {
	lexeme := c.parser.previous.Lexeme
	// strip the surrounding quotes; spec.md §4.1 does no escape processing.
	s := lexeme[1 : len(lexeme)-1]
	c.emitConstant(c.parser.interner.Intern(s))
}

func (c *compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous.Lexeme, canAssign)
}

func (c *compiler) unary(bool) {
	opType := c.parser.previous.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case token.Bang:
		c.emitOp(chunk.OpNot)
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *compiler) binary(bool) {
	opType := c.parser.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case token.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case token.Greater:
		c.emitOp(chunk.OpGreater)
	case token.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case token.Less:
		c.emitOp(chunk.OpLess)
	case token.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSubtract)
	case token.Star:
		c.emitOp(chunk.OpMultiply)
	case token.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *compiler) call(bool) {
	argCount := c.argumentList()
	c.emitBytes(chunk.OpCall, argCount)
}

func (c *compiler) argumentList() byte {
	p := c.parser
	var count int
	if !p.check(token.RightParen) {
		for {
			c.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after arguments.")
	return byte(count)
}

func (c *compiler) and_(bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *compiler) or_(bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *compiler) literal(bool) {
	switch c.parser.previous.Type {
	case token.False:
		c.emitOp(chunk.OpFalse)
	case token.Nil:
		c.emitOp(chunk.OpNil)
	case token.True:
		c.emitOp(chunk.OpTrue)
	}
}
