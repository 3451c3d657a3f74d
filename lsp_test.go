package main

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/nf/idk/idk"
)

func TestOpDocs(t *testing.T) {
	for _, op := range idk.Ops() {
		doc, ok := opDocs[op]
		if !ok {
			t.Errorf("%v: no doc", op)
			continue
		}
		if !strings.HasPrefix(doc, op.String()) {
			t.Errorf("%v: doc %q does not start with the instruction", op, doc)
		}
		sig, _, _ := strings.Cut(doc, "\n")
		if got := len(strings.Fields(sig)) - 1; got != op.Operands() {
			t.Errorf("%v: doc shows %d operands, want %d", op, got, op.Operands())
		}
	}
}

func TestDiagnostics(t *testing.T) {
	text := "SET x 1\r\nIF x\nOUTPUT\nENDIF\nFROB 1\n"
	diags := diagnostics(text)
	want := []struct {
		line, end protocol.UInteger
		msg       string
	}{
		{2, 6, "a parameter expected"},
		{4, 6, "unknown instruction FROB"},
	}
	if len(diags) != len(want) {
		t.Fatalf("got %d diagnostics, want %d: %+v", len(diags), len(want), diags)
	}
	for i, w := range want {
		d := diags[i]
		if d.Range.Start.Line != w.line || d.Range.End.Line != w.line {
			t.Errorf("%d: got lines %d-%d, want %d", i, d.Range.Start.Line, d.Range.End.Line, w.line)
		}
		if d.Range.Start.Character != 0 || d.Range.End.Character != w.end {
			t.Errorf("%d: got characters %d-%d, want 0-%d", i, d.Range.Start.Character, d.Range.End.Character, w.end)
		}
		if d.Message != w.msg {
			t.Errorf("%d: got message %q, want %q", i, d.Message, w.msg)
		}
		if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
			t.Errorf("%d: severity is not error", i)
		}
	}
	if diags := diagnostics("SET x 1\nOUTPUT x\n"); len(diags) != 0 {
		t.Errorf("valid program: got %+v", diags)
	}
	if diags := diagnostics("OUTPUT y\n"); len(diags) != 0 {
		t.Errorf("unset variable is a runtime error, got %+v", diags)
	}
}

func labels(items []protocol.CompletionItem) []string {
	var l []string
	for _, it := range items {
		l = append(l, it.Label)
	}
	return l
}

func TestCompletions(t *testing.T) {
	text := "SET count 1\nSET total 0\nADD total total count\nE\nOUTPUT t\n  en"
	for _, c := range []struct {
		line, char int
		want       string
	}{
		{3, 1, "EQ ELSE ENDIF ENDWHILE ENDFOR"},
		{4, 8, "total"},
		{4, 7, "count t total"},
		{5, 4, "ENDIF ENDWHILE ENDFOR"},
		{0, 0, strings.Join(labels(completions("", 0, 0)), " ")},
		{9, 0, ""},
	} {
		got := strings.Join(labels(completions(text, c.line, c.char)), " ")
		if got != c.want {
			t.Errorf("line %d char %d: got %q, want %q", c.line, c.char, got, c.want)
		}
	}
	if got := len(completions("", 0, 0)); got != len(idk.Ops()) {
		t.Errorf("empty document: got %d completions, want %d", got, len(idk.Ops()))
	}
}

func TestHoverText(t *testing.T) {
	text := "SET x 1\nFOR x 10\nENDFOR x"
	doc, ok := hoverText(text, 1, 1)
	if !ok || !strings.Contains(doc, "FOR var limit") {
		t.Errorf("hover on FOR: got %q, %v", doc, ok)
	}
	doc, ok = hoverText(text, 2, 6)
	if !ok || !strings.Contains(doc, "ENDFOR var") {
		t.Errorf("hover at end of ENDFOR: got %q, %v", doc, ok)
	}
	doc, ok = hoverText("CMP lt a b", 0, 0)
	if !ok || !strings.Contains(doc, "if a < b") {
		t.Errorf("hover on CMP: got %q, %v", doc, ok)
	}
	if doc, ok := hoverText(text, 0, 4); ok {
		t.Errorf("hover on variable: got %q", doc)
	}
	if doc, ok := hoverText(text, 5, 0); ok {
		t.Errorf("hover past end: got %q", doc)
	}
}

func TestWordAt(t *testing.T) {
	for _, c := range []struct {
		s    string
		char int
		want string
	}{
		{"ADD x y 1", 0, "ADD"},
		{"ADD x y 1", 3, "ADD"},
		{"ADD x y 1", 4, "x"},
		{"ADD x y 1", 9, "1"},
		{"ADD  x", 4, ""},
		{"ADD", 7, ""},
	} {
		if got := wordAt(c.s, c.char); got != c.want {
			t.Errorf("wordAt(%q, %d) = %q, want %q", c.s, c.char, got, c.want)
		}
	}
}
