// Command idk runs programs written in the idk line-oriented assembly
// language.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"

	"github.com/nf/idk/host"
	"github.com/nf/idk/idk"
)

func main() {
	log.SetPrefix("idk: ")
	log.SetFlags(0)

	var (
		guiFlag      = flag.Bool("gui", false, "show the memory buffer in a window")
		devFlag      = flag.Bool("dev", false, "enable developer mode (re-run the program when it changes)")
		debugFlag    = flag.Bool("debug", false, "enable debugger (implies -dev)")
		checkFlag    = flag.Bool("check", false, "report errors in the program without running it")
		lspFlag      = flag.Bool("lsp", false, "serve the language server protocol on stdin and stdout")
		formatFlag   = flag.String("format", "decimal", "output `format`: decimal or char")
		memFlag      = flag.Int("mem", idk.DefaultBufferSize, "size of the memory buffer in `bytes`")
		snapshotFlag = flag.String("snapshot", "", "write the final machine state to `file`")
		inspectFlag  = flag.String("inspect", "", "print the machine state saved in `file`")
		configFlag   = flag.String("config", "", "read defaults from TOML `file` (default idk.toml beside the program)")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-gui] [-format f] [-mem n] [-snapshot file] <program.idk>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [-gui] <-dev | -debug> <program.idk>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -check <program.idk>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -inspect <file>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -lsp\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	switch {
	case *lspFlag:
		if err := serveLSP(); err != nil {
			log.Fatal(err)
		}
		return
	case *inspectFlag != "":
		if err := inspect(os.Stdout, *inspectFlag); err != nil {
			log.Fatal(err)
		}
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
	}
	file := flag.Arg(0)

	if *checkFlag {
		if !check(os.Stderr, file) {
			os.Exit(1)
		}
		return
	}

	cfgFile := *configFlag
	if cfgFile == "" {
		cfgFile = filepath.Join(filepath.Dir(file), defaultConfigFile)
	}
	cfg, err := loadConfig(cfgFile, *configFlag != "")
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "gui":
			cfg.GUI = *guiFlag
		case "format":
			cfg.Format = *formatFlag
		case "mem":
			cfg.Memory = *memFlag
		case "snapshot":
			cfg.Snapshot = *snapshotFlag
		}
	})
	format, err := host.ParseFormat(cfg.Format)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *devFlag || *debugFlag {
		if err := devMode(ctx, cfg, format, *debugFlag, file); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	err = run(ctx, file, cfg, format)

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatalf("%s: %v", file, err)
	}
}

func run(ctx context.Context, file string, cfg config, format host.Format) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	con := &host.Console{In: os.Stdin, Out: os.Stdout, Format: format}
	m := idk.NewMachineSize(idk.ParseProgram(string(src)), con, cfg.Memory)

	r := host.NewRunner(cfg.GUI, false, nil)
	runErr := r.Run(ctx, m)

	if cfg.Snapshot != "" {
		if err := writeSnapshot(cfg.Snapshot, host.TakeSnapshot(m, runErr)); err != nil {
			log.Printf("writing snapshot: %v", err)
		}
	}
	return runErr
}

// check writes the static errors of the program in file to w
// and reports whether there were none.
func check(w io.Writer, file string) bool {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(w, err)
		return false
	}
	errs := idk.Check(idk.ParseProgram(string(src)))
	for _, err := range errs {
		fmt.Fprintf(w, "%s: %v\n", file, err)
	}
	return len(errs) == 0
}

func writeSnapshot(name string, s *host.Snapshot) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := host.WriteSnapshot(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func inspect(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := host.ReadSnapshot(f)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	_, err = io.WriteString(w, s.String())
	return err
}
