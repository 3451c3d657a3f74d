package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nf/idk/idk"
)

type state struct {
	kind StateKind
	pc   int
}

// recordStates returns a StateFunc that sends every state except the
// running ones to the returned channel.
func recordStates() (StateFunc, <-chan state) {
	ch := make(chan state, 100)
	return func(m *idk.Machine, k StateKind) {
		if k != ClearState && k != QuietState {
			ch <- state{k, m.PC}
		}
	}, ch
}

func wantState(t *testing.T, ch <-chan state, want state) {
	t.Helper()
	select {
	case g := <-ch:
		if g != want {
			t.Fatalf("got state %+v, want %+v", g, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for state %+v", want)
	}
}

func TestRunnerRun(t *testing.T) {
	var out bytes.Buffer
	m := idk.NewMachine(idk.ParseProgram("OUTPUT 1\nFOO\nOUTPUT 2"), &Console{Out: &out})
	r := NewRunner(false, false, nil)
	err := r.Run(context.Background(), m)
	if want := (idk.SyntaxError{Line: 2, Msg: "unknown instruction FOO"}); err != want {
		t.Fatalf("got error %v, want %v", err, want)
	}
	if g := out.String(); g != "1\n" {
		t.Errorf("output is %q, want %q", g, "1\n")
	}
}

func TestRunnerBreakStep(t *testing.T) {
	var out bytes.Buffer
	m := idk.NewMachine(idk.ParseProgram("OUTPUT 1\n# two\nOUTPUT 2\nOUTPUT 3"), &Console{Out: &out})
	sf, states := recordStates()
	r := NewRunner(false, false, sf)
	r.Debug("b", 3)

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background(), m) }()

	wantState(t, states, state{BreakState, 2})
	r.Debug("s", 0)
	wantState(t, states, state{PauseState, 3})
	r.Debug("c", 0)
	wantState(t, states, state{DoneState, 4})
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if g, w := out.String(), "1\n2\n3\n"; g != w {
		t.Errorf("output is %q, want %q", g, w)
	}
}

func TestRunnerDebugLine(t *testing.T) {
	m := idk.NewMachine(idk.ParseProgram("SET i 0\nFOR i 3\nENDFOR i"), nil)
	sf, states := recordStates()
	r := NewRunner(false, false, sf)
	r.Debug("d", 3)
	if err := r.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		wantState(t, states, state{DebugState, 2})
	}
	wantState(t, states, state{DoneState, 3})
}

func TestRunnerHalt(t *testing.T) {
	m := idk.NewMachine(idk.ParseProgram("SET a 1\nOUTPUT b"), &Console{Out: io.Discard})
	sf, states := recordStates()
	r := NewRunner(false, false, sf)
	var re idk.ReferenceError
	if err := r.Run(context.Background(), m); !errors.As(err, &re) {
		t.Fatalf("got error %v, want reference error", err)
	}
	wantState(t, states, state{HaltState, 1})
}

// notifyDevice records output values on a channel.
type notifyDevice chan idk.Value

func (d notifyDevice) Input(ctx context.Context) (idk.Value, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (d notifyDevice) Output(ctx context.Context, v idk.Value) error {
	d <- v
	return nil
}

func TestRunnerSwap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := make(notifyDevice, 10)
	r := NewRunner(false, true, nil)
	errc := make(chan error, 1)
	go func() {
		// INPUT blocks until the machine is halted by Swap.
		errc <- r.Run(ctx, idk.NewMachine(idk.ParseProgram("OUTPUT 1\nINPUT x"), dev))
	}()
	if v := <-dev; v != 1 {
		t.Fatalf("got output %d, want 1", v)
	}

	r.Swap(idk.NewMachine(idk.ParseProgram("OUTPUT 2"), dev))
	if v := <-dev; v != 2 {
		t.Fatalf("got output %d, want 2", v)
	}
	// A failing machine does not stop the runner in dev mode.
	r.Swap(idk.NewMachine(idk.ParseProgram("OUTPUT q"), dev))
	r.Swap(idk.NewMachine(idk.ParseProgram("OUTPUT 3"), dev))
	if v := <-dev; v != 3 {
		t.Fatalf("got output %d, want 3", v)
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("got error %v, want %v", err, context.Canceled)
	}
}

func TestLine(t *testing.T) {
	m := idk.NewMachine(idk.ParseProgram("SET a 1"), nil)
	if g, w := Line(m), "   1 SET a 1"; g != w {
		t.Errorf("Line = %q, want %q", g, w)
	}
	m.PC = 1
	if g := Line(m); !strings.Contains(g, "(end)") {
		t.Errorf("Line = %q, want end", g)
	}
}

const busyLoop = "SET a 1\nWHILE 1\nADD a a 1\nENDWHILE"

func TestRunnerCancelBusyLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := idk.NewMachine(idk.ParseProgram(busyLoop), nil)
	r := NewRunner(false, false, nil)
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx, m) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("got error %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunnerSwapBusyLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := make(notifyDevice, 10)
	r := NewRunner(false, true, nil)
	errc := make(chan error, 1)
	go func() {
		errc <- r.Run(ctx, idk.NewMachine(idk.ParseProgram(busyLoop), dev))
	}()
	time.Sleep(10 * time.Millisecond)

	swapped := make(chan bool)
	go func() {
		r.Swap(idk.NewMachine(idk.ParseProgram("OUTPUT 2"), dev))
		close(swapped)
	}()
	select {
	case <-swapped:
	case <-time.After(5 * time.Second):
		t.Fatal("Swap blocked on a busy loop")
	}
	select {
	case v := <-dev:
		if v != 2 {
			t.Errorf("got output %d, want 2", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("swapped machine did not run")
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("got error %v, want %v", err, context.Canceled)
	}
}

// syncBuffer is a bytes.Buffer safe for use by the log package and a test.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func TestRunnerDevLogsElapsed(t *testing.T) {
	var buf syncBuffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev := make(notifyDevice, 1)
	r := NewRunner(false, true, nil)
	errc := make(chan error, 1)
	go func() {
		errc <- r.Run(ctx, idk.NewMachine(idk.ParseProgram("OUTPUT 1"), dev))
	}()
	<-dev
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(buf.String(), "idk: done in ") {
		if time.Now().After(deadline) {
			t.Fatalf("no elapsed time logged, got %q", buf.String())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-errc

	// A plain run does not log.
	buf.mu.Lock()
	buf.b.Reset()
	buf.mu.Unlock()
	m := idk.NewMachine(idk.ParseProgram("SET a 1"), nil)
	if err := NewRunner(false, false, nil).Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if g := buf.String(); g != "" {
		t.Errorf("plain run logged %q", g)
	}
}
