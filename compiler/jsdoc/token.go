package jsdoc

import "fmt"

// TokenType represents the type of token in a documentation comment
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_NEWLINE

	// Content
	TOKEN_TEXT  // Free text up to the end of the line or the next inline tag
	TOKEN_TAG   // Block tag such as @default or @example
	TOKEN_FENCE // Markdown code fence line (```tsx)
)

// Token represents a lexical token of a documentation comment
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{} // Tag name without "@" for TOKEN_TAG, fence info string for TOKEN_FENCE
	Line    int
	Column  int
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_NEWLINE:
		return "NEWLINE"
	case TOKEN_TEXT:
		return "TEXT"
	case TOKEN_TAG:
		return "TAG"
	case TOKEN_FENCE:
		return "FENCE"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

// LexError represents a problem found while tokenizing a comment
type LexError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// inlineTags may start mid-line. Any other "@" inside running text is
// treated as text (emails, decorators).
var inlineTags = map[string]bool{
	"default":      true,
	"defaultValue": true,
	"deprecated":   true,
	"example":      true,
	"param":        true,
	"returns":      true,
	"see":          true,
	"since":        true,
}
