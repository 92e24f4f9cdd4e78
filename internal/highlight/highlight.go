// Package highlight splits source text into syntax-colored tokens per line.
package highlight

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// StyleName is the chroma style used for token colors.
const StyleName = "dracula"

// Line is one source line split into colored tokens.
type Line struct {
	Tokens []Token
}

// Token is a run of text sharing one color.
type Token struct {
	Text  string
	Color string // hex color, empty for the default foreground
}

// Plain returns the line's text without color.
func (l Line) Plain() string {
	var b strings.Builder
	for _, t := range l.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Source splits content into lines and highlights them. language is the
// backend's language hint and may be empty; the filename is used otherwise.
func Source(filename, language, content string) []Line {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		lines = nil
	}
	return Lines(filename, language, lines)
}

// Lines highlights pre-split source lines. It returns exactly one Line per
// input line.
func Lines(filename, language string, lines []string) []Line {
	lexer := Lexer(filename, language)
	if lexer == nil {
		return plainLines(lines)
	}

	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plainLines(lines)
	}

	style := styles.Get(StyleName)
	if style == nil {
		style = styles.Fallback
	}

	result := make([]Line, 0, len(lines))
	current := Line{}
	for _, token := range iterator.Tokens() {
		// Tokens may span several lines.
		parts := strings.Split(token.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				result = append(result, current)
				current = Line{}
			}
			if part != "" {
				current.Tokens = append(current.Tokens, Token{
					Text:  part,
					Color: tokenColor(style, token.Type),
				})
			}
		}
	}
	result = append(result, current)

	for len(result) < len(lines) {
		result = append(result, Line{})
	}
	return result[:len(lines)]
}

func plainLines(lines []string) []Line {
	result := make([]Line, len(lines))
	for i, line := range lines {
		result[i] = Line{Tokens: []Token{{Text: line}}}
	}
	return result
}

// Lexer picks a lexer by language name first, then by filename.
func Lexer(filename, language string) chroma.Lexer {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Match(filepath.Base(filename))
	}
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return lexer
}

// Language returns the canonical language name for filename, or "".
func Language(filename string) string {
	lexer := Lexer(filename, "")
	if lexer == nil {
		return ""
	}
	return strings.ToLower(lexer.Config().Name)
}

func tokenColor(style *chroma.Style, tt chroma.TokenType) string {
	entry := style.Get(tt)
	if entry.Colour.IsSet() {
		return entry.Colour.String()
	}
	return ""
}
