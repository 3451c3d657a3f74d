package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/idk/host"
	"github.com/nf/idk/idk"
)

// devMode runs the program in file, and runs it again from the start each
// time the file changes. With debug set it also shows the debugger.
func devMode(ctx context.Context, cfg config, format host.Format, debug bool, file string) error {
	file = filepath.Clean(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(file)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		con   = &host.Console{In: os.Stdin, Out: os.Stdout, Format: format}
		d     *debugger
		state host.StateFunc
	)
	if debug {
		in, out := io.Pipe()
		defer out.Close()
		d = newDebugger(out)
		con.In, con.Out = in, d.log
		state = d.StateFunc
	}
	runner := host.NewRunner(cfg.GUI, true, state)
	if d != nil {
		d.run = runner
		log.SetPrefix("")
		log.SetOutput(d.log)
		go func() {
			if err := d.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("idk: ")
			cancel()
		}()
	}

	load := func() (*idk.Machine, error) {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		p := idk.ParseProgram(string(src))
		for _, err := range idk.Check(p) {
			log.Printf("dev: check: %v", err)
		}
		if d != nil {
			d.setProgram(p)
		}
		return idk.NewMachineSize(p, con, cfg.Memory), nil
	}

	mCh := make(chan *idk.Machine)
	go func() {
		started := false
		run := time.After(1 * time.Millisecond)
		for {
			select {
			case <-run:
				log.Printf("dev: load %s", filepath.Base(file))
				m, err := load()
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				if !started {
					log.Printf("dev: start")
					select {
					case mCh <- m:
					case <-ctx.Done():
						return
					}
					started = true
				} else {
					log.Printf("dev: reset")
					runner.Swap(m)
				}
			case ev := <-watcher.Event:
				if ev.Name == file && !ev.IsAttrib() {
					run = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	var m *idk.Machine
	select {
	case m = <-mCh:
	case <-ctx.Done():
		return nil
	}
	if err := runner.Run(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
