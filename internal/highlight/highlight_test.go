package highlight

import (
	"testing"
)

func TestLines(t *testing.T) {
	lines := []string{
		"package main",
		"",
		"func main() {",
		`	fmt.Println("hello")`,
		"}",
	}

	highlighted := Lines("main.go", "", lines)

	if len(highlighted) != len(lines) {
		t.Fatalf("expected %d highlighted lines, got %d", len(lines), len(highlighted))
	}
	if len(highlighted[0].Tokens) == 0 {
		t.Error("expected tokens in first line")
	}
	for i, line := range lines {
		if highlighted[i].Plain() != line {
			t.Errorf("line %d: plain text mismatch: %q", i, highlighted[i].Plain())
		}
	}
}

func TestLinesUnknownLanguage(t *testing.T) {
	lines := []string{"some content", "more content"}
	highlighted := Lines("unknown.xyz123", "", lines)

	if len(highlighted) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(highlighted))
	}
	if highlighted[0].Plain() != "some content" {
		t.Errorf("expected plain passthrough, got %q", highlighted[0].Plain())
	}
}

func TestLanguageHintWins(t *testing.T) {
	lexer := Lexer("Dockerfile.txt", "python")
	if lexer == nil {
		t.Fatal("expected a lexer from the language hint")
	}
	if got := lexer.Config().Name; got != "Python" {
		t.Errorf("expected Python lexer, got %q", got)
	}
}

func TestSource(t *testing.T) {
	got := Source("a.ts", "typescript", "const a = 1;\r\nconst b = 2;\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[1].Plain() != "const b = 2;" {
		t.Errorf("unexpected second line %q", got[1].Plain())
	}
	if len(Source("empty.go", "", "")) != 0 {
		t.Error("expected no lines for empty content")
	}
}

func TestLanguage(t *testing.T) {
	if got := Language("main.go"); got != "go" {
		t.Errorf("expected go, got %q", got)
	}
	if got := Language("noext"); got != "" {
		t.Errorf("expected no language, got %q", got)
	}
}
