package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nf/idk/idk"
)

// Format selects how a Console writes output values.
type Format int

const (
	Decimal Format = iota // one decimal number per line
	Char                  // the low byte of each value, as is
)

// ParseFormat returns the Format named s ("decimal" or "char").
func ParseFormat(s string) (Format, error) {
	switch s {
	case "decimal", "":
		return Decimal, nil
	case "char":
		return Char, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

func (f Format) String() string {
	if f == Char {
		return "char"
	}
	return "decimal"
}

// Console is an idk.Device that reads one value per line from In and
// writes values to Out. Input lines are converted with idk.ParseValue, so
// a line that is not a number reads as 0.
type Console struct {
	In     io.Reader
	Out    io.Writer
	Format Format

	once  sync.Once
	lines <-chan inputLine
}

type inputLine struct {
	text string
	err  error
}

func (c *Console) Input(ctx context.Context) (idk.Value, error) {
	c.once.Do(func() {
		lines := make(chan inputLine)
		go readInput(c.In, lines)
		c.lines = lines
	})
	select {
	case l, ok := <-c.lines:
		if !ok {
			return 0, io.EOF
		}
		if l.err != nil {
			return 0, l.err
		}
		return idk.ParseValue(l.text), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Console) Output(ctx context.Context, v idk.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch c.Format {
	case Char:
		_, err = c.Out.Write([]byte{byte(v)})
	default:
		_, err = fmt.Fprintf(c.Out, "%d\n", v)
	}
	return err
}

func readInput(r io.Reader, lines chan<- inputLine) {
	defer close(lines)
	s := bufio.NewScanner(r)
	for s.Scan() {
		lines <- inputLine{text: s.Text()}
	}
	if err := s.Err(); err != nil {
		lines <- inputLine{err: fmt.Errorf("reading input: %w", err)}
	}
}
