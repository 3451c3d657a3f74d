package idk

import "fmt"

// Check reports the errors that executing each line of p could raise without
// reading any variable: unknown opcodes, missing operands, and control-flow
// constructs that cannot be balanced. An unbalanced block is reported even
// though a run that never needs to jump over it succeeds. Errors are
// returned in line order. A nil result does not guarantee that a run succeeds, since
// reads of unset variables are only detected during execution.
func Check(p Program) []error {
	var errs []error
	for i := range p {
		if p.Blank(i) {
			continue
		}
		in := newOperands(p, i)
		w, _ := in.next()
		op, ok := ParseOp(w)
		if !ok {
			errs = append(errs, SyntaxError{Line: i + 1, Msg: fmt.Sprintf("unknown instruction %s", w)})
			continue
		}
		if err := checkOperands(in, op.Operands()); err != nil {
			errs = append(errs, err)
			continue
		}
		if b, ok := blocks[op]; ok {
			if _, err := p.seek(b, i); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func checkOperands(in *operands, n int) error {
	for ; n > 0; n-- {
		if _, err := in.next(); err != nil {
			return err
		}
	}
	return nil
}
