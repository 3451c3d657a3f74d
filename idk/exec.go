// Package idk provides an implementation of the idk line-oriented
// pseudo-assembly language. A Machine executes a Program one line at a time
// over a table of 16-bit variables and a byte buffer, resolving structured
// control flow by scanning the program at the moment of each jump.
package idk

import (
	"context"
	"errors"
	"fmt"
)

// Machine is an idk interpreter instance. Its state persists across calls
// to Exec and Run so that it can be inspected after completion or failure.
type Machine struct {
	Prog Program
	Vars Vars
	Buf  Buffer
	PC   int // index into Prog of the next line to execute
	Dev  Device
}

// Device provides the input and output ports of a Machine.
// Both methods may block; they should return promptly with ctx.Err()
// once ctx is done.
type Device interface {
	Input(ctx context.Context) (Value, error)
	Output(ctx context.Context, v Value) error
}

// ErrNoDevice is reported by INPUT and OUTPUT on a Machine without a Device.
var ErrNoDevice = errors.New("no device")

// NewMachine returns a Machine ready to execute p from its first line,
// with a buffer of DefaultBufferSize bytes.
func NewMachine(p Program, dev Device) *Machine {
	return NewMachineSize(p, dev, DefaultBufferSize)
}

// NewMachineSize is like NewMachine but with a buffer of bufLen bytes.
func NewMachineSize(p Program, dev Device, bufLen int) *Machine {
	return &Machine{
		Prog: p,
		Buf:  NewBuffer(bufLen),
		Dev:  dev,
	}
}

// Exec parses src and runs it to completion on a new Machine. The Machine
// is returned even if execution fails.
func Exec(ctx context.Context, src string, dev Device) (*Machine, error) {
	m := NewMachine(ParseProgram(src), dev)
	return m, m.Run(ctx)
}

// Done reports whether the program has run past its last line.
func (m *Machine) Done() bool { return m.PC >= len(m.Prog) }

// Skip advances PC past any blank and comment lines,
// so that it points at the next instruction to execute.
func (m *Machine) Skip() {
	for !m.Done() && m.Prog.Blank(m.PC) {
		m.PC++
	}
}

// Run executes instructions from PC until the end of the program, the
// first error, or until ctx is done. Run does not reset the machine state.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if m.Skip(); m.Done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Exec(ctx); err != nil {
			return err
		}
	}
}

// fault carries an error raised while decoding operands to Exec.
type fault struct{ err error }

// Exec executes the instruction at (or, skipping comments, after) PC and
// advances PC to the next line to execute. On error PC is left at the
// failing line. Exec does nothing if the program is done.
func (m *Machine) Exec(ctx context.Context) (err error) {
	if m.Skip(); m.Done() {
		return nil
	}
	line := m.PC
	defer func() {
		if e := recover(); e != nil {
			if f, ok := e.(fault); ok {
				err = f.err
			} else {
				panic(e)
			}
		}
	}()

	in := newOperands(m.Prog, line)
	w := in.word()
	op, ok := ParseOp(w)
	if !ok {
		return SyntaxError{Line: line + 1, Msg: fmt.Sprintf("unknown instruction %s", w)}
	}

	pc := line + 1
	switch op {
	case INPUT:
		trg := in.word()
		v, err := m.input(ctx)
		if err != nil {
			return PortError{Line: line + 1, Op: op, Err: err}
		}
		m.Vars.Set(trg, v)
	case OUTPUT:
		if err := m.output(ctx, m.value(in)); err != nil {
			return PortError{Line: line + 1, Op: op, Err: err}
		}
	case SET:
		trg := in.word()
		m.Vars.Set(trg, m.value(in))
	case LOAD:
		trg := in.word()
		m.Vars.Set(trg, m.Buf.Load(m.value(in)))
	case STORE:
		addr := m.value(in)
		m.Buf.Store(addr, m.value(in))
	case ADD, SUB, CMP, EQ:
		trg := in.word()
		a := m.value(in)
		b := m.value(in)
		m.Vars.Set(trg, arith(op, a, b))
	case IF, IFNOT:
		v := m.value(in)
		if (op == IF) == (v == 0) {
			pc = m.jump(op, line) + 1
		}
	case ELSE:
		pc = m.jump(op, line) + 1
	case ENDIF:
	case WHILE:
		if m.value(in) == 0 {
			pc = m.jump(op, line) + 1
		}
	case ENDWHILE:
		pc = m.jump(op, line)
	case FOR:
		from := m.value(in)
		to := m.value(in)
		if from >= to {
			pc = m.jump(op, line) + 1
		}
	case ENDFOR:
		trg := in.word()
		v, ok := m.Vars.Get(trg)
		if !ok {
			return ReferenceError{Line: line + 1, Name: trg}
		}
		m.Vars.Set(trg, v+1)
		pc = m.jump(op, line)
	}
	m.PC = pc
	return nil
}

func arith(op Op, a, b Value) Value {
	switch op {
	case ADD:
		return a + b
	case SUB:
		if a < b {
			return b - a
		}
		return a - b
	case CMP:
		if a < b {
			return True
		}
	case EQ:
		if a == b {
			return True
		}
	}
	return 0
}

// value reads the next word of in and resolves it as a literal or variable.
func (m *Machine) value(in *operands) Value {
	return m.resolve(in.word(), in.line)
}

func (m *Machine) resolve(w string, line int) Value {
	if IsLiteral(w) {
		return ParseValue(w)
	}
	v, ok := m.Vars.Get(w)
	if !ok {
		panic(fault{ReferenceError{Line: line + 1, Name: w}})
	}
	return v
}

// jump returns the line that closes (or, for ENDWHILE and ENDFOR, opens)
// the construct of op at line.
func (m *Machine) jump(op Op, line int) int {
	i, err := m.Prog.seek(blocks[op], line)
	if err != nil {
		panic(fault{err})
	}
	return i
}

func (m *Machine) input(ctx context.Context) (Value, error) {
	if m.Dev == nil {
		return 0, ErrNoDevice
	}
	return m.Dev.Input(ctx)
}

func (m *Machine) output(ctx context.Context, v Value) error {
	if m.Dev == nil {
		return ErrNoDevice
	}
	return m.Dev.Output(ctx, v)
}

// SyntaxError reports a malformed instruction: a missing operand, an
// unknown opcode, or a control-flow construct without its partner.
type SyntaxError struct {
	Line int // 1-based
	Msg  string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("syntax error on line %d: %s", e.Line, e.Msg)
}

// ReferenceError reports a read of a variable that was never written.
type ReferenceError struct {
	Line int // 1-based
	Name string
}

func (e ReferenceError) Error() string {
	return fmt.Sprintf("reference error on line %d: unknown variable %s", e.Line, e.Name)
}

// PortError reports the failure of a Device port during INPUT or OUTPUT.
type PortError struct {
	Line int // 1-based
	Op   Op
	Err  error
}

func (e PortError) Error() string {
	return fmt.Sprintf("%s on line %d: %v", e.Op, e.Line, e.Err)
}

func (e PortError) Unwrap() error { return e.Err }

// ErrorLine returns the 1-based line number carried by err,
// or 0 if err is not an execution error.
func ErrorLine(err error) int {
	var (
		se SyntaxError
		re ReferenceError
		pe PortError
	)
	switch {
	case errors.As(err, &se):
		return se.Line
	case errors.As(err, &re):
		return re.Line
	case errors.As(err, &pe):
		return pe.Line
	}
	return 0
}
