package jsdoc

import (
	"strings"
	"unicode"
)

// Lexer tokenizes a documentation comment. It strips the comment delimiters
// and the leading "*" gutter of every line.
type Lexer struct {
	source      []rune     // Comment text as runes for Unicode support
	start       int        // Start position of current token
	current     int        // Current position in source
	line        int        // Current line number
	column      int        // Current column number
	startColumn int        // Column where current token started
	lineStart   bool       // At the beginning of a line, before the gutter
	lineContent int        // Position of the first rune after the gutter
	inFence     bool       // Inside a ``` block; tags are not recognized
	fenceLine   int        // Line of the opening fence
	tokens      []Token    // Collected tokens
	errors      []LexError // Collected errors
}

// NewLexer creates a Lexer for the given raw comment.
func NewLexer(comment string) *Lexer {
	src := []rune(comment)
	l := &Lexer{
		source:    src,
		line:      1,
		column:    1,
		lineStart: true,
		tokens:    make([]Token, 0, 16),
	}
	switch {
	case strings.HasPrefix(comment, "/**"):
		l.skip(3)
	case strings.HasPrefix(comment, "/*"), strings.HasPrefix(comment, "//"):
		l.skip(2)
	}
	return l
}

// ScanTokens scans all tokens and returns them with any errors
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		if l.lineStart {
			l.skipGutter()
			if l.isAtEnd() {
				break
			}
		}
		l.start = l.current
		l.startColumn = l.column
		l.scanToken()
	}

	if l.inFence {
		l.errors = append(l.errors, LexError{Message: "unterminated code fence", Line: l.fenceLine, Column: 1})
	}

	l.tokens = append(l.tokens, Token{Type: TOKEN_EOF, Line: l.line, Column: l.column})
	return l.tokens, l.errors
}

func (l *Lexer) scanToken() {
	r := l.peek()

	switch {
	case r == '\n':
		l.advance()
		l.addToken(TOKEN_NEWLINE, nil)
		l.line++
		l.column = 1
		l.lineStart = true

	case r == '\r':
		l.advance()

	case l.closesComment():
		l.current = len(l.source)

	case l.startsFence():
		l.scanFence()

	case r == '@' && !l.inFence && l.tagAllowed():
		l.scanTag()

	default:
		l.scanText()
	}
}

// skipGutter consumes leading whitespace and one "*" (plus one following
// space) at the start of a line.
func (l *Lexer) skipGutter() {
	l.lineStart = false
	defer func() { l.lineContent = l.current }()
	mark, markCol := l.current, l.column
	for !l.isAtEnd() && (l.peek() == ' ' || l.peek() == '\t') {
		l.advance()
	}
	if l.peek() == '*' && l.peekNext() != '/' {
		l.advance()
		if l.peek() == ' ' {
			l.advance()
		}
		return
	}
	if l.inFence {
		// Without a gutter keep the indentation of code lines.
		l.current, l.column = mark, markCol
	}
}

func (l *Lexer) scanFence() {
	for !l.isAtEnd() && l.peek() != '\n' && !l.closesComment() {
		l.advance()
	}
	lexeme := strings.TrimSpace(string(l.source[l.start:l.current]))
	info := strings.TrimSpace(strings.TrimLeft(lexeme, "`"))
	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_FENCE,
		Lexeme:  lexeme,
		Literal: info,
		Line:    l.line,
		Column:  l.startColumn,
	})
	if !l.inFence {
		l.fenceLine = l.line
	}
	l.inFence = !l.inFence
}

func (l *Lexer) scanTag() {
	l.advance() // @
	for !l.isAtEnd() && l.isTagRune(l.peek()) {
		l.advance()
	}
	name := string(l.source[l.start+1 : l.current])
	l.addToken(TOKEN_TAG, name)
	// A single separator space belongs to the tag.
	if l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}
}

func (l *Lexer) scanText() {
	for !l.isAtEnd() {
		r := l.peek()
		if r == '\n' || r == '\r' || l.closesComment() {
			break
		}
		if r == '@' && !l.inFence && l.current > l.start && l.inlineTagAt(l.current) {
			break
		}
		l.advance()
	}
	if l.current > l.start {
		l.addToken(TOKEN_TEXT, nil)
	}
}

// tagAllowed reports whether an "@" at the current position opens a tag:
// always at the start of line content, and mid-line only for inline tags.
func (l *Lexer) tagAllowed() bool {
	if l.atLineContentStart() {
		return l.isTagRune(l.peekNext())
	}
	return l.inlineTagAt(l.current)
}

func (l *Lexer) inlineTagAt(pos int) bool {
	if pos == 0 || !unicode.IsSpace(l.source[pos-1]) {
		return false
	}
	end := pos + 1
	for end < len(l.source) && l.isTagRune(l.source[end]) {
		end++
	}
	return inlineTags[string(l.source[pos+1:end])]
}

func (l *Lexer) atLineContentStart() bool {
	for i := l.lineContent; i < l.current; i++ {
		if l.source[i] != ' ' && l.source[i] != '\t' {
			return false
		}
	}
	return true
}

func (l *Lexer) startsFence() bool {
	if !l.atLineContentStart() {
		return false
	}
	i := l.current
	for i < len(l.source) && (l.source[i] == ' ' || l.source[i] == '\t') {
		i++
	}
	return i+2 < len(l.source) && l.source[i] == '`' && l.source[i+1] == '`' && l.source[i+2] == '`'
}

func (l *Lexer) closesComment() bool {
	if l.peek() != '*' || l.peekNext() != '/' {
		return false
	}
	// Only the final "*/" closes the comment.
	for i := l.current + 2; i < len(l.source); i++ {
		if !unicode.IsSpace(l.source[i]) {
			return false
		}
	}
	return true
}

func (l *Lexer) isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character
func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	r := l.source[l.current]
	l.current++
	l.column++
	return r
}

func (l *Lexer) skip(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

// peek returns the current character without consuming it
func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

// peekNext returns the next character without consuming it
func (l *Lexer) peekNext() rune {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) addToken(tokenType TokenType, literal interface{}) {
	l.tokens = append(l.tokens, Token{
		Type:    tokenType,
		Lexeme:  string(l.source[l.start:l.current]),
		Literal: literal,
		Line:    l.line,
		Column:  l.startColumn,
	})
}
