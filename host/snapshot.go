package host

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/nf/idk/idk"
)

// Snapshot is the state of a Machine after a run, kept for inspection.
type Snapshot struct {
	PC      int               `cbor:"pc"`
	Done    bool              `cbor:"done"`
	Vars    map[string]uint16 `cbor:"vars"`
	Buffer  []byte            `cbor:"buffer"`
	Err     string            `cbor:"err,omitempty"`
	ErrLine int               `cbor:"err_line,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("host: creating CBOR enc mode: %v", err))
	}
	encMode = em
}

// TakeSnapshot records the state of m and the error that ended its run.
func TakeSnapshot(m *idk.Machine, err error) *Snapshot {
	s := &Snapshot{
		PC:     m.PC,
		Done:   m.Done(),
		Vars:   make(map[string]uint16, m.Vars.Len()),
		Buffer: append([]byte(nil), m.Buf...),
	}
	for _, n := range m.Vars.Names() {
		v, _ := m.Vars.Get(n)
		s.Vars[n] = uint16(v)
	}
	if err != nil {
		s.Err = err.Error()
		s.ErrLine = idk.ErrorLine(err)
	}
	return s
}

func WriteSnapshot(w io.Writer, s *Snapshot) error {
	b, err := encMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = w.Write(b)
	return err
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := cbor.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

// String formats the snapshot for humans: the stopping point, the
// variables in name order, and every 16-byte row of the buffer that holds
// a non-zero byte.
func (s *Snapshot) String() string {
	var b strings.Builder
	switch {
	case s.Err != "":
		fmt.Fprintf(&b, "failed: %s\n", s.Err)
	case s.Done:
		b.WriteString("done\n")
	default:
		fmt.Fprintf(&b, "stopped before line %d\n", s.PC+1)
	}
	var vars idk.Vars
	for n, v := range s.Vars {
		vars.Set(n, idk.Value(v))
	}
	for _, n := range vars.Names() {
		v, _ := vars.Get(n)
		fmt.Fprintf(&b, "%s = %d\n", n, v)
	}
	for row := 0; row < len(s.Buffer); row += 16 {
		cells := s.Buffer[row:min(row+16, len(s.Buffer))]
		if isZero(cells) {
			continue
		}
		fmt.Fprintf(&b, "%.4x:", row)
		for _, c := range cells {
			fmt.Fprintf(&b, " %.2x", c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
