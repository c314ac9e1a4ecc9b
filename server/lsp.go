package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/intcode/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "intcode-lsp"

// LspServer provides editor support for Intcode program files: syntax
// diagnostics and hover text showing how a cell decodes.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Intcode LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

// hover describes the cell under the cursor: the instruction it belongs to
// in a linear disassembly and, for operands, how they are addressed.
func hover(text string, pos protocol.Position) *protocol.Hover {
	cell := cellAt(text, pos)
	if cell < 0 {
		return nil
	}
	program, err := vm.ParseProgram(text)
	if err != nil || cell >= int64(len(program)) {
		return nil
	}

	var line vm.Line
	for _, l := range vm.Disassemble(program) {
		if cell >= l.Addr && cell < l.Addr+int64(len(l.Cells)) {
			line = l
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%04d** `%s`", line.Addr, line.Mnemonic())
	switch {
	case line.Data:
	case cell == line.Addr:
		in := line.Instruction
		fmt.Fprintf(&b, "\n\nopcode %d (%s)", int64(in.Op), in.Op)
		for i := 0; i < len(line.Cells)-1; i++ {
			fmt.Fprintf(&b, ", param %d %s", i+1, in.Modes[i])
		}
	default:
		i := cell - line.Addr - 1
		fmt.Fprintf(&b, "\n\ncell %d: param %d, %s mode", cell, i+1, line.Instruction.Modes[i])
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnose(text),
	})
}

// diagnose reports the first malformed cell of a program text.
func diagnose(text string) []protocol.Diagnostic {
	_, err := vm.ParseProgram(text)
	var se *vm.SyntaxError
	if !errors.As(err, &se) {
		return []protocol.Diagnostic{}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: position(text, se.Offset),
			End:   position(text, se.Offset+len(se.Text)),
		},
		Severity: &severity,
		Source:   &source,
		Message:  se.Error(),
	}}
}

// --- Text position helpers ---

// position converts a byte offset into a line/character position.
func position(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	line := strings.Count(before, "\n")
	col := offset - (strings.LastIndexByte(before, '\n') + 1)
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// offsetOf converts a line/character position into a byte offset, or -1
// when it is outside the text.
func offsetOf(text string, pos protocol.Position) int {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return -1
	}
	offset := 0
	for _, l := range lines[:pos.Line] {
		offset += len(l) + 1
	}
	col := int(pos.Character)
	if col > len(lines[pos.Line]) {
		col = len(lines[pos.Line])
	}
	return offset + col
}

// cellAt returns the index of the comma-separated cell under the cursor,
// or -1 when the cursor is outside the text.
func cellAt(text string, pos protocol.Position) int64 {
	offset := offsetOf(text, pos)
	if offset < 0 {
		return -1
	}
	return int64(strings.Count(text[:offset], ","))
}

func boolPtr(b bool) *bool {
	return &b
}
