package idk

import "strings"

// Op represents an instruction opcode, the first word of a program line.
type Op byte

const (
	INPUT Op = iota
	OUTPUT
	SET
	LOAD
	STORE
	ADD
	SUB
	CMP
	EQ
	IF
	IFNOT
	ELSE
	ENDIF
	WHILE
	ENDWHILE
	FOR
	ENDFOR
)

var opStrings = strings.Fields(`
	INPUT
	OUTPUT
	SET
	LOAD
	STORE
	ADD
	SUB
	CMP
	EQ
	IF
	IFNOT
	ELSE
	ENDIF
	WHILE
	ENDWHILE
	FOR
	ENDFOR
`)

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opStrings))
	for i, s := range opStrings {
		m[s] = Op(i)
	}
	return m
}()

func (o Op) String() string {
	if int(o) < len(opStrings) {
		return opStrings[o]
	}
	return "?"
}

// ParseOp returns the opcode named by word. Opcodes are case-sensitive.
func ParseOp(word string) (Op, bool) {
	o, ok := opByName[word]
	return o, ok
}

// Ops returns every opcode in the instruction set.
func Ops() []Op {
	ops := make([]Op, len(opStrings))
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// Operands reports the number of words that follow the opcode.
func (o Op) Operands() int {
	switch o {
	case ELSE, ENDIF, ENDWHILE:
		return 0
	case INPUT, OUTPUT, IF, IFNOT, WHILE, ENDFOR:
		return 1
	case SET, LOAD, STORE, FOR:
		return 2
	case ADD, SUB, CMP, EQ:
		return 3
	}
	return 0
}

// block describes how a control-flow opcode locates the line it jumps to.
type block struct {
	close     []Op // opcodes that unnest one level
	alt       []Op // opcodes that end the search only at the outermost level
	open      []Op // opcodes that nest another level
	backwards bool
}

var blocks = map[Op]block{
	IF:       {close: []Op{ENDIF}, alt: []Op{ELSE}, open: []Op{IF, IFNOT}},
	IFNOT:    {close: []Op{ENDIF}, alt: []Op{ELSE}, open: []Op{IF, IFNOT}},
	ELSE:     {close: []Op{ENDIF}, open: []Op{IF, IFNOT}},
	WHILE:    {close: []Op{ENDWHILE}, open: []Op{WHILE}},
	ENDWHILE: {close: []Op{WHILE}, open: []Op{ENDWHILE}, backwards: true},
	FOR:      {close: []Op{ENDFOR}, open: []Op{FOR}},
	ENDFOR:   {close: []Op{FOR}, open: []Op{ENDFOR}, backwards: true},
}

func hasOp(ops []Op, o Op) bool {
	for _, op := range ops {
		if op == o {
			return true
		}
	}
	return false
}
