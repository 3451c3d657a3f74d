package main

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/idk/host"
	"github.com/nf/idk/idk"
)

// debugger is a terminal UI showing program output and log messages,
// watched variables, and the state of the machine. It reads commands
// from an input line at the bottom of the screen.
type debugger struct {
	run *host.Runner

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	// Values typed with the "in" command, written in order to the
	// program's input.
	values chan string

	mu       sync.Mutex
	prog     idk.Program
	names    []string // variables of the last reported machine
	watches  []string
	brk, dbg int
}

func newDebugger(in io.Writer) *debugger {
	d := &debugger{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app:    tview.NewApplication(),
		values: make(chan string, 64),
	}
	go func() {
		for v := range d.values {
			if _, err := fmt.Fprintln(in, v); err != nil {
				return
			}
		}
	}()
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 3, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if cmd, arg, ok := strings.Cut(t, " "); ok {
			switch cmd {
			case "w", "watch":
				for _, name := range d.variables(arg) {
					entries = append(entries, cmd+" "+name)
				}
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		if cmd == "exit" {
			close(d.values)
			d.app.Stop()
			return
		}
		d.command(cmd)
	})
	return d
}

// command carries out a debugger command other than exit.
func (d *debugger) command(cmd string) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "b", "break", "d", "debug":
		line := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				log.Printf("invalid line %q", arg)
				return
			}
			line = n
		}
		d.run.Debug(cmd, line)
		d.mu.Lock()
		defer d.mu.Unlock()
		what := "break"
		if cmd[0] == 'b' {
			d.brk = line
		} else {
			d.dbg = line
			what = "debug"
		}
		if line == 0 {
			log.Printf("cleared %s", what)
		} else {
			log.Printf("set %s %d", what, line)
		}
	case "w", "watch":
		d.mu.Lock()
		defer d.mu.Unlock()
		if arg == "" {
			d.watches = nil
			log.Print("cleared watches")
			return
		}
		if idk.IsLiteral(arg) {
			log.Printf("invalid variable %q", arg)
			return
		}
		d.watches = append(d.watches, arg)
		log.Printf("watching %s", arg)
	case "i", "in":
		if arg == "" {
			log.Print("in: value expected")
			return
		}
		select {
		case d.values <- arg:
		default:
			log.Printf("in: dropped %q, too much pending input", arg)
		}
	default:
		d.run.Debug(cmd, 0)
	}
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) setProgram(p idk.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prog = p
}

// variables returns the known variable names beginning with prefix.
func (d *debugger) variables(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for _, name := range d.names {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

func (d *debugger) StateFunc(m *idk.Machine, k host.StateKind) {
	var (
		watch = d.watchContent(m)
		state string
	)
	if k != host.ClearState && k != host.QuietState {
		state = stateMsg(m, k)
	}
	d.app.QueueUpdateDraw(func() {
		switch k {
		case host.DebugState, host.ClearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case host.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case host.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case host.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		case host.DoneState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGreen)
		}
		d.watch.SetText(watch)
		if k != host.QuietState {
			d.state.SetText(state)
		}
	})
}

func stateMsg(m *idk.Machine, k host.StateKind) string {
	kind := "       "
	switch k {
	case host.BreakState:
		kind = "[break]"
	case host.DebugState:
		kind = "[debug]"
	case host.PauseState:
		kind = "[pause]"
	case host.HaltState:
		kind = "[HALT!]"
	case host.DoneState:
		kind = "[done!]"
	}
	var next string
	if !m.Done() {
		if i := m.PC + 1; i < len(m.Prog) {
			next = fmt.Sprintf("%4d %s", i+1, m.Prog[i])
		}
	}
	return fmt.Sprintf("%s %s\n        %s\nvars: %d\n",
		kind, host.Line(m), next, m.Vars.Len())
}

// watchContent renders the break and debug lines and the watched
// variables. With no watches, every variable is shown.
func (d *debugger) watchContent(m *idk.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = m.Vars.Names()
	var b strings.Builder
	if l := d.brk; l > 0 && l <= len(d.prog) {
		fmt.Fprintf(&b, "%s [%d] brk!\n", d.prog[l-1], l)
	}
	if l := d.dbg; l > 0 && l <= len(d.prog) {
		fmt.Fprintf(&b, "%s [%d] dbg?\n", d.prog[l-1], l)
	}
	names := d.watches
	if len(names) == 0 {
		names = d.names
	} else {
		names = append([]string(nil), names...)
		sort.Strings(names)
	}
	for _, name := range names {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if v, ok := m.Vars.Get(name); ok {
			fmt.Fprintf(&b, "%s = %5d [%.4x]", name, v, uint16(v))
		} else {
			fmt.Fprintf(&b, "%s =     ? [----]", name)
		}
	}
	return b.String()
}
