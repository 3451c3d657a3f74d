package idk

import (
	"fmt"
	"strings"
)

// seek scans the program from the line after from, forwards or backwards
// depending on b, for the line that balances the construct at from. Lines
// whose opcode is in b.open nest one level deeper and lines in b.close
// unnest one level; the first line that brings the depth to zero is
// returned. A line in b.alt (ELSE for an IF) is returned only when met at
// the outermost level, so an inner IF's ELSE does not end the search.
// Nothing is cached; every jump searches afresh.
func (p Program) seek(b block, from int) (int, error) {
	step := 1
	if b.backwards {
		step = -1
	}
	depth := 1
	for i := from + step; i >= 0 && i < len(p); i += step {
		if p.Blank(i) {
			continue
		}
		op, ok := p.op(i)
		if !ok {
			continue
		}
		switch {
		case hasOp(b.open, op):
			depth++
		case hasOp(b.close, op):
			depth--
		case depth == 1 && hasOp(b.alt, op):
			return i, nil
		}
		if depth <= 0 {
			return i, nil
		}
	}
	end := "end"
	if b.backwards {
		end = "start"
	}
	var names []string
	for _, ops := range [][]Op{b.close, b.alt} {
		for _, o := range ops {
			names = append(names, o.String())
		}
	}
	return 0, SyntaxError{
		Line: from + 1,
		Msg:  fmt.Sprintf("%s expected, but reached the %s of the program", strings.Join(names, " or "), end),
	}
}
