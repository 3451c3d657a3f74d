package main

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/nf/idk/idk"

	_ "github.com/tliron/commonlog/simple"
)

const (
	lspName    = "idk"
	lspVersion = "0.1.0"
)

// opDocs describes each instruction for hover and completion.
var opDocs = map[idk.Op]string{
	idk.INPUT:    "INPUT target\n\nRead a value from the input port into target.",
	idk.OUTPUT:   "OUTPUT value\n\nWrite value to the output port.",
	idk.SET:      "SET target value\n\nAssign value to target.",
	idk.LOAD:     "LOAD target addr\n\nAssign the buffer byte at addr to target.",
	idk.STORE:    "STORE addr value\n\nStore the low byte of value in the buffer at addr.",
	idk.ADD:      "ADD target a b\n\nAssign a+b to target, wrapping at 0x10000.",
	idk.SUB:      "SUB target a b\n\nAssign the absolute difference of a and b to target.",
	idk.CMP:      "CMP target a b\n\nAssign 0xffff to target if a < b, else 0.",
	idk.EQ:       "EQ target a b\n\nAssign 0xffff to target if a = b, else 0.",
	idk.IF:       "IF cond\n\nRun the block if cond is not zero. Closed by ELSE or ENDIF.",
	idk.IFNOT:    "IFNOT cond\n\nRun the block if cond is zero. Closed by ELSE or ENDIF.",
	idk.ELSE:     "ELSE\n\nRun the block if the matching IF or IFNOT was skipped.",
	idk.ENDIF:    "ENDIF\n\nClose an IF, IFNOT or ELSE block.",
	idk.WHILE:    "WHILE cond\n\nRepeat the block while cond is not zero.",
	idk.ENDWHILE: "ENDWHILE\n\nJump back to the matching WHILE.",
	idk.FOR:      "FOR var limit\n\nRepeat the block while var < limit.",
	idk.ENDFOR:   "ENDFOR var\n\nIncrement var and jump back to the matching FOR.",
}

var lspLog = commonlog.GetLogger("idk.lsp")

// lspServer checks open documents and publishes their errors as
// diagnostics, and offers completion and hover for instructions.
type lspServer struct {
	handler protocol.Handler
	server  *glspserver.Server

	mu   sync.Mutex
	docs map[protocol.DocumentUri]string
}

func serveLSP() error {
	commonlog.Configure(1, nil)
	return newLSPServer().server.RunStdio()
}

func newLSPServer() *lspServer {
	s := &lspServer{docs: make(map[protocol.DocumentUri]string)}
	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.didOpen,
		TextDocumentDidChange:  s.didChange,
		TextDocumentDidClose:   s.didClose,
		TextDocumentCompletion: s.completion,
		TextDocumentHover:      s.hover,
	}
	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

func (s *lspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	version := lspVersion
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &version,
		},
	}, nil
}

func (s *lspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	lspLog.Info("client initialized")
	return nil
}

func (s *lspServer) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *lspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *lspServer) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.setDoc(uri, params.TextDocument.Text)
	s.publish(ctx, uri, params.TextDocument.Text)
	return nil
}

func (s *lspServer) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	for _, change := range params.ContentChanges {
		if c, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDoc(uri, c.Text)
			s.publish(ctx, uri, c.Text)
		}
	}
	return nil
}

func (s *lspServer) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	return nil
}

func (s *lspServer) setDoc(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = text
}

func (s *lspServer) doc(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[uri]
	return text, ok
}

func (s *lspServer) publish(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text),
	})
}

// diagnostics checks text and reports each error against its line.
func diagnostics(text string) []protocol.Diagnostic {
	lines := strings.Split(text, "\n")
	severity := protocol.DiagnosticSeverityError
	source := lspName
	diags := []protocol.Diagnostic{}
	for _, err := range idk.Check(idk.ParseProgram(text)) {
		line := idk.ErrorLine(err) - 1
		if line < 0 || line >= len(lines) {
			continue
		}
		msg := err.Error()
		var serr idk.SyntaxError
		if errors.As(err, &serr) {
			msg = serr.Msg
		}
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(line)},
				End: protocol.Position{
					Line:      protocol.UInteger(line),
					Character: protocol.UInteger(len(strings.TrimRight(lines[line], "\r"))),
				},
			},
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	return diags
}

func (s *lspServer) completion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return completions(text, int(params.Position.Line), int(params.Position.Character)), nil
}

// completions offers instructions for the first word of a line, and the
// variables named elsewhere in text for the others.
func completions(text string, line, char int) []protocol.CompletionItem {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return nil
	}
	cur := lines[line]
	if char > len(cur) {
		char = len(cur)
	}
	before := cur[:char]
	prefix := before[strings.LastIndexAny(before, " \t")+1:]
	items := []protocol.CompletionItem{}

	if strings.TrimSpace(before) == prefix {
		kind := protocol.CompletionItemKindKeyword
		for _, op := range idk.Ops() {
			name := op.String()
			if !strings.HasPrefix(name, strings.ToUpper(prefix)) {
				continue
			}
			detail, _, _ := strings.Cut(opDocs[op], "\n")
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
		return items
	}

	kind := protocol.CompletionItemKindVariable
	for _, name := range variableNames(lines) {
		if name == prefix || !strings.HasPrefix(name, prefix) {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			InsertText: &name,
		})
	}
	return items
}

// variableNames returns the sorted operands of instructions in lines
// that are not literals.
func variableNames(lines []string) []string {
	seen := make(map[string]bool)
	for _, l := range lines {
		words := strings.Fields(l)
		if len(words) < 2 {
			continue
		}
		if _, ok := idk.ParseOp(words[0]); !ok {
			continue
		}
		for _, w := range words[1:] {
			if !idk.IsLiteral(w) {
				seen[w] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *lspServer) hover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc, ok := hoverText(text, int(params.Position.Line), int(params.Position.Character))
	if !ok {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
	}, nil
}

// hoverText describes the instruction under the given position.
func hoverText(text string, line, char int) (string, bool) {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return "", false
	}
	w := wordAt(lines[line], char)
	if w == "" {
		return "", false
	}
	op, ok := idk.ParseOp(w)
	if !ok {
		return "", false
	}
	sig, desc, _ := strings.Cut(opDocs[op], "\n\n")
	return "```\n" + sig + "\n```\n" + desc, true
}

// wordAt returns the space-delimited word of s that contains char.
func wordAt(s string, char int) string {
	if char < 0 || char > len(s) {
		return ""
	}
	start := strings.LastIndexAny(s[:char], " \t") + 1
	end := strings.IndexAny(s[char:], " \t\r")
	if end < 0 {
		end = len(s)
	} else {
		end += char
	}
	return s[start:end]
}

func boolPtr(b bool) *bool { return &b }
