package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/stackvm/vm"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple", "LOAD", protocol.Position{Line: 0, Character: 4}, "LOAD"},
		{"underscore", "LOAD_CO", protocol.Position{Line: 0, Character: 7}, "LOAD_CO"},
		{"after space", "JMP 12", protocol.Position{Line: 0, Character: 6}, "12"},
		{"multi line", "EXIT\nDU", protocol.Position{Line: 1, Character: 2}, "DU"},
		{"cursor at start", "ADD", protocol.Position{Line: 0, Character: 0}, ""},
		{"empty", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"past end of line", "POP", protocol.Position{Line: 0, Character: 40}, "POP"},
		{"line beyond document", "POP", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle", "LOAD_CONST 5", protocol.Position{Line: 0, Character: 3}, "LOAD_CONST"},
		{"at end", "EXIT", protocol.Position{Line: 0, Character: 4}, "EXIT"},
		{"argument", "JMPZ 7", protocol.Position{Line: 0, Character: 5}, "7"},
		{"second line", "DUP\nWRITE_CHAR", protocol.Position{Line: 1, Character: 6}, "WRITE_CHAR"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "ADD", protocol.Position{Line: 3, Character: 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAtLineStart(t *testing.T) {
	if !atLineStart("LOA", protocol.Position{Line: 0, Character: 3}, 3) {
		t.Error("first token should be at line start")
	}
	if atLineStart("JMP 1", protocol.Position{Line: 0, Character: 5}, 1) {
		t.Error("argument should not be at line start")
	}
	if atLineStart("ADD", protocol.Position{Line: 2, Character: 0}, 0) {
		t.Error("line beyond document should not be at line start")
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point to true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point to false")
	}
}

// ---------------------------------------------------------------------------
// Registry-backed logic (complete, hover, diagnose)
// ---------------------------------------------------------------------------

func TestLSP_Complete(t *testing.T) {
	lsp := newTestLSP(t)

	result, err := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return lsp.complete(reg, "jm")
	})
	if err != nil {
		t.Fatalf("complete returned error: %v", err)
	}
	items := result.([]protocol.CompletionItem)
	if len(items) != 2 {
		t.Fatalf("complete for 'jm' returned %d items, want 2", len(items))
	}
	if items[0].Label != "JMP" || items[1].Label != "JMPZ" {
		t.Errorf("labels = %q, %q; want JMP, JMPZ", items[0].Label, items[1].Label)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("instruction completion should have Kind=Keyword")
	}
	if items[0].Detail == nil || *items[0].Detail != "opcode 9" {
		t.Errorf("JMP detail = %v, want opcode 9", items[0].Detail)
	}
}

func TestLSP_CompleteEmptyPrefix(t *testing.T) {
	lsp := newTestLSP(t)

	result, _ := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return lsp.complete(reg, "")
	})
	if items := result.([]protocol.CompletionItem); len(items) != 13 {
		t.Errorf("empty prefix returned %d items, want 13", len(items))
	}
}

func TestLSP_Hover(t *testing.T) {
	lsp := newTestLSP(t)

	result, err := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return lsp.hover(reg, "DIV")
	})
	if err != nil {
		t.Fatalf("hover returned error: %v", err)
	}
	hover := result.(*protocol.Hover)
	if hover == nil {
		t.Fatal("hover for DIV should not be nil")
	}
	content := hover.Contents.(protocol.MarkupContent)
	if content.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover kind = %s, want markdown", content.Kind)
	}
	if !strings.Contains(content.Value, "**DIV** (opcode 5)") {
		t.Errorf("hover = %q, want name and opcode", content.Value)
	}
	if !strings.Contains(content.Value, "b/a") {
		t.Errorf("hover = %q, want instruction doc", content.Value)
	}
}

func TestLSP_HoverUnknownWord(t *testing.T) {
	lsp := newTestLSP(t)

	result, _ := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return lsp.hover(reg, "MUL")
	})
	if hover := result.(*protocol.Hover); hover != nil {
		t.Errorf("hover for unknown word = %+v, want nil", hover)
	}
}

func TestLSP_Diagnose(t *testing.T) {
	lsp := newTestLSP(t)
	text := "LOAD_CONST 1\nMUL\nLOAD_CONST x\nEXIT"

	result, err := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return diagnose(reg, text)
	})
	if err != nil {
		t.Fatalf("diagnose returned error: %v", err)
	}
	diags := result.([]protocol.Diagnostic)
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(diags))
	}

	if diags[0].Range.Start.Line != 1 || diags[0].Range.End.Character != 3 {
		t.Errorf("first diagnostic range = %+v", diags[0].Range)
	}
	if diags[0].Message != "unknown instruction: MUL" {
		t.Errorf("first message = %q", diags[0].Message)
	}
	if diags[1].Range.Start.Line != 2 {
		t.Errorf("second diagnostic line = %d, want 2", diags[1].Range.Start.Line)
	}
	if !strings.HasPrefix(diags[1].Message, "bad argument for LOAD_CONST: x") {
		t.Errorf("second message = %q", diags[1].Message)
	}
	if diags[0].Severity == nil || *diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Error("diagnostics should be errors")
	}
}

func TestLSP_DiagnoseClean(t *testing.T) {
	lsp := newTestLSP(t)

	result, _ := lsp.worker.Do(func(reg *vm.Registry) interface{} {
		return diagnose(reg, "LOAD_CONST 1\nEXIT\n")
	})
	diags := result.([]protocol.Diagnostic)
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnostics = %v, want empty non-nil slice", diags)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := newTestLSP(t)

	lsp.mu.Lock()
	lsp.docs["file:///test.svm"] = "EXIT"
	lsp.mu.Unlock()

	text, ok := lsp.document("file:///test.svm")
	if !ok || text != "EXIT" {
		t.Errorf("document = %q, %v; want EXIT, true", text, ok)
	}

	lsp.mu.Lock()
	delete(lsp.docs, "file:///test.svm")
	lsp.mu.Unlock()

	if _, ok := lsp.document("file:///test.svm"); ok {
		t.Error("document should be removed after close")
	}
}
