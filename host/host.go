// Package host runs idk machines: it drives execution, connects machines to
// a console and an optional memory viewer, and takes the commands of the
// debugger and of dev mode.
package host

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nf/idk/idk"
)

// StateKind tells a StateFunc why it is being called.
type StateKind int

const (
	ClearState StateKind = iota // running; clear any previous state
	QuietState                  // running; refresh watches only
	DebugState                  // reached the debug line
	BreakState                  // paused at the break line
	PauseState                  // paused by a pause or step command
	HaltState                   // stopped by an error
	DoneState                   // ran past the last line
)

// StateFunc is called by the Runner from the goroutine that executes the
// machine, while the machine is stopped between instructions.
// It must not retain m.
type StateFunc func(m *idk.Machine, k StateKind)

// quietInterval is how often a running machine reports QuietState.
const quietInterval = 100 * time.Millisecond

type Runner struct {
	gui   bool
	dev   bool
	state StateFunc

	swap     chan *idk.Machine
	swapDone chan bool
	debug    chan debugCmd

	// Accessed only by the goroutine executing the machine.
	brk, dbg int // 1-based lines; 0 is none
	paused   bool
	step     bool
}

type debugCmd struct {
	cmd  string
	line int
}

// NewRunner returns a Runner. In dev mode Run keeps going after the machine
// stops, waiting for Swap. state may be nil.
func NewRunner(enableGUI, devMode bool, state StateFunc) *Runner {
	return &Runner{
		gui:      enableGUI,
		dev:      devMode,
		state:    state,
		swap:     make(chan *idk.Machine),
		swapDone: make(chan bool),
		debug:    make(chan debugCmd, 16),
	}
}

// Swap halts the running machine and starts m in its place.
func (r *Runner) Swap(m *idk.Machine) {
	if !r.dev {
		panic("Swap called while not running in dev mode")
	}
	r.swap <- m
	<-r.swapDone
}

// Debug sends a command to the running machine:
//
//	b, break LINE   pause before executing LINE (0 clears)
//	d, debug LINE   report state on reaching LINE (0 clears)
//	p, pause        pause before the next instruction
//	s, step         execute one instruction, then pause
//	c, cont         resume
func (r *Runner) Debug(cmd string, line int) {
	select {
	case r.debug <- debugCmd{cmd, line}:
	default:
		log.Printf("debug: dropped %q, machine busy", cmd)
	}
}

// Run executes m until it finishes, fails, or ctx is done. In dev mode Run
// only returns when ctx is done. With the GUI enabled Run must be called
// from the main goroutine, and returns once the window is closed.
func (r *Runner) Run(ctx context.Context, m *idk.Machine) error {
	if !r.gui {
		return r.run(ctx, m, nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		g    = newGUI()
		err  error
		exit = make(chan bool)
	)
	go func() {
		defer close(exit)
		err = r.run(ctx, m, g)
	}()
	if gerr := g.Run(ctx.Done()); gerr != nil {
		log.Printf("gui: %v", gerr)
	}
	cancel()
	<-exit
	return err
}

func (r *Runner) run(ctx context.Context, m *idk.Machine, g *gui) error {
	if !r.dev {
		return r.exec(ctx, m, g)
	}
	var (
		execErr = make(chan error)
		halt    context.CancelFunc
		running bool
	)
	start := func(m *idk.Machine) {
		var mctx context.Context
		mctx, halt = context.WithCancel(ctx)
		running = true
		go func() { execErr <- r.exec(mctx, m, g) }()
	}
	start(m)
	for {
		select {
		case newM := <-r.swap:
			if running {
				halt()
				<-execErr
			}
			r.step = false
			start(newM)
			r.swapDone <- true
		case err := <-execErr:
			running = false
			halt()
			if err != nil && ctx.Err() == nil {
				log.Printf("idk: %v", err)
			}
		case <-ctx.Done():
			if running {
				halt()
				<-execErr
			}
			return ctx.Err()
		}
	}
}

// exec drives m one instruction at a time, applying debugger commands and
// feeding the GUI between instructions.
func (r *Runner) exec(ctx context.Context, m *idk.Machine, g *gui) error {
	var (
		start = time.Now()
		quiet = start
	)
	r.report(m, ClearState)
	for {
		m.Skip()
		g.offer(m)
		if err := r.control(ctx, m, g); err != nil {
			return err
		}
		if m.Done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Exec(ctx); err != nil {
			r.report(m, HaltState)
			g.sync(ctx, m)
			return err
		}
		if r.state != nil && time.Since(quiet) > quietInterval {
			quiet = time.Now()
			r.report(m, QuietState)
		}
	}
	r.report(m, DoneState)
	g.sync(ctx, m)
	if r.dev {
		log.Printf("idk: done in %v", time.Since(start).Round(time.Microsecond))
	}
	return nil
}

// control applies queued debugger commands and blocks while paused.
func (r *Runner) control(ctx context.Context, m *idk.Machine, g *gui) error {
	for drained := false; !drained; {
		select {
		case c := <-r.debug:
			r.apply(m, c)
		default:
			drained = true
		}
	}
	if m.Done() {
		return nil
	}
	kind := PauseState
	switch line := m.PC + 1; {
	case line == r.brk:
		r.paused = true
		kind = BreakState
	case line == r.dbg:
		r.report(m, DebugState)
	}
	if r.paused && !r.step {
		r.report(m, kind)
		for r.paused && !r.step {
			select {
			case c := <-r.debug:
				r.apply(m, c)
			case g.updates() <- m:
				<-g.updateDone
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	r.step = false
	return nil
}

func (r *Runner) apply(m *idk.Machine, c debugCmd) {
	switch c.cmd {
	case "b", "break":
		r.brk = c.line
	case "d", "debug":
		r.dbg = c.line
	case "p", "pause":
		r.paused = true
	case "s", "step":
		r.paused = true
		r.step = true
	case "c", "cont", "continue":
		if r.paused {
			r.paused = false
			r.report(m, ClearState)
		}
	default:
		log.Printf("debug: unknown command %q", c.cmd)
	}
}

func (r *Runner) report(m *idk.Machine, k StateKind) {
	if r.state != nil {
		r.state(m, k)
	}
}

// Line describes the instruction at the PC of m for state displays.
func Line(m *idk.Machine) string {
	if m.Done() {
		return fmt.Sprintf("%4d (end)", m.PC+1)
	}
	return fmt.Sprintf("%4d %s", m.PC+1, m.Prog[m.PC])
}
