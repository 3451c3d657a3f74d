package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nf/idk/host"
	"github.com/nf/idk/idk"
)

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "prog.idk")
	if err := os.WriteFile(name, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestCheck(t *testing.T) {
	var out bytes.Buffer
	ok := check(&out, writeProgram(t, "SET x 1\nOUTPUT x\n"))
	if !ok || out.Len() != 0 {
		t.Errorf("valid program: got %v, %q", ok, out.String())
	}

	out.Reset()
	name := writeProgram(t, "SET x\nWHILE x\nJUMP\n")
	if check(&out, name) {
		t.Error("invalid program: got ok")
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d errors, want 3:\n%s", len(lines), out.String())
	}
	for i, l := range lines {
		if !strings.HasPrefix(l, name+": ") {
			t.Errorf("error %d: %q lacks file name", i, l)
		}
	}
	if !strings.Contains(lines[0], "line 1") || !strings.Contains(lines[2], "unknown instruction JUMP") {
		t.Errorf("unexpected errors:\n%s", out.String())
	}
}

func TestSnapshotFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := idk.NewMachineSize(idk.ParseProgram("SET a 2\nSTORE 1 a"), nil, 16)
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "state.cbor")
	if err := writeSnapshot(name, host.TakeSnapshot(m, nil)); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := inspect(&out, name); err != nil {
		t.Fatal(err)
	}
	want := "done\na = 2\n0000: 00 02 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n"
	if got := out.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	bad := filepath.Join(t.TempDir(), "bad.cbor")
	if err := os.WriteFile(bad, []byte("not cbor"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := inspect(&out, bad); err == nil {
		t.Error("inspect of garbage: got nil error")
	}
}
