package idk

import "strings"

// Program is the source of a Machine, one trimmed instruction per element.
// A Program is never modified once parsed.
type Program []string

// ParseProgram splits src into lines and trims the surrounding whitespace of
// each one.
func ParseProgram(src string) Program {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return Program(lines)
}

// Blank reports whether line i is empty or a comment.
func (p Program) Blank(i int) bool {
	return p[i] == "" || p[i][0] == '#'
}

// op returns the opcode of line i, which must not be blank.
func (p Program) op(i int) (Op, bool) {
	w, _ := nextWord(p[i], 0)
	return ParseOp(w)
}
