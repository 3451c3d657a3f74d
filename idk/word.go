package idk

import "strings"

// nextWord returns the word of line that starts at offset i, and the offset
// of the space that terminates it, or -1 if the word runs to the end of line.
func nextWord(line string, i int) (word string, end int) {
	j := strings.IndexByte(line[i:], ' ')
	if j < 0 {
		return line[i:], -1
	}
	return line[i : i+j], i + j
}

// operands walks the words of a single instruction line.
type operands struct {
	text string
	line int // 0-based index into the program
	pos  int // start of the next word; -1 once the last word was read
}

func newOperands(p Program, line int) *operands {
	return &operands{text: p[line], line: line}
}

// next returns the next word of the line, or an error if the line has no
// more words or the next word is empty (two adjacent spaces).
func (o *operands) next() (string, error) {
	if o.pos < 0 || o.pos > len(o.text) {
		return "", o.missing()
	}
	w, end := nextWord(o.text, o.pos)
	if end < 0 {
		o.pos = -1
	} else {
		o.pos = end + 1
	}
	if w == "" {
		return "", o.missing()
	}
	return w, nil
}

// word is like next but raises the error as a fault for Exec to recover.
func (o *operands) word() string {
	w, err := o.next()
	if err != nil {
		panic(fault{err})
	}
	return w
}

func (o *operands) missing() error {
	return SyntaxError{Line: o.line + 1, Msg: "a parameter expected"}
}

