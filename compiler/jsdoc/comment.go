// Package jsdoc parses JSDoc-style documentation comments into a free-text
// description and a list of block tags.
package jsdoc

import (
	"strings"
)

// Comment is a parsed documentation comment.
type Comment struct {
	Description string     // Text before the first tag, whitespace normalized
	Tags        []Tag      // Block tags in source order
	Errors      []LexError // Non-fatal problems such as an unterminated fence
}

// Tag is a block tag and the text that follows it up to the next tag.
type Tag struct {
	Name string
	Text string
	Line int
}

// Parse parses a raw comment including its delimiters.
func Parse(raw string) *Comment {
	tokens, errs := NewLexer(raw).ScanTokens()
	c := &Comment{Errors: errs}

	var (
		descLines []string
		tagLines  []string
		current   *Tag
		line      strings.Builder
	)

	endLine := func() {
		text := line.String()
		line.Reset()
		if current == nil {
			descLines = append(descLines, text)
		} else {
			tagLines = append(tagLines, text)
		}
	}
	closeTag := func() {
		if current == nil {
			return
		}
		current.Text = joinBlock(tagLines)
		c.Tags = append(c.Tags, *current)
		current, tagLines = nil, nil
	}

	for _, tok := range tokens {
		switch tok.Type {
		case TOKEN_TEXT, TOKEN_FENCE:
			line.WriteString(tok.Lexeme)
		case TOKEN_NEWLINE:
			endLine()
		case TOKEN_TAG:
			if strings.TrimSpace(line.String()) != "" {
				endLine()
			} else {
				line.Reset()
			}
			closeTag()
			current = &Tag{Name: tok.Literal.(string), Line: tok.Line}
		case TOKEN_EOF:
			endLine()
			closeTag()
		}
	}

	c.Description = normalizeParagraphs(descLines)
	return c
}

// Tag returns the first tag with the given name.
func (c *Comment) Tag(name string) (Tag, bool) {
	for _, t := range c.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// TagsNamed returns every tag with the given name.
func (c *Comment) TagsNamed(name string) []Tag {
	var out []Tag
	for _, t := range c.Tags {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// Default returns the value of @default (or @defaultValue) verbatim.
func (c *Comment) Default() (string, bool) {
	for _, name := range []string{"default", "defaultValue"} {
		if t, ok := c.Tag(name); ok {
			v := strings.Join(strings.Fields(t.Text), " ")
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Deprecated reports whether the comment carries @deprecated and its reason.
func (c *Comment) Deprecated() (bool, string) {
	t, ok := c.Tag("deprecated")
	if !ok {
		return false, ""
	}
	return true, normalizeParagraphs(strings.Split(t.Text, "\n"))
}

// Examples returns the snippets of all @example tags. Fenced code blocks are
// preferred. A tag without a fence contributes its whole text.
func (c *Comment) Examples() []string {
	var out []string
	for _, t := range c.TagsNamed("example") {
		blocks := fencedBlocks(t.Text)
		if len(blocks) > 0 {
			out = append(out, blocks...)
			continue
		}
		if text := strings.TrimSpace(t.Text); text != "" {
			out = append(out, dedent(text))
		}
	}
	return out
}

// fencedBlocks returns the contents of the ``` blocks in text.
func fencedBlocks(text string) []string {
	var (
		blocks  []string
		current []string
		open    bool
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if open {
				if block := dedent(strings.Join(current, "\n")); strings.TrimSpace(block) != "" {
					blocks = append(blocks, block)
				}
				current = nil
			}
			open = !open
			continue
		}
		if open {
			current = append(current, line)
		}
	}
	return blocks
}

// dedent removes the common leading whitespace of all non-blank lines and
// surrounding blank lines.
func dedent(text string) string {
	lines := strings.Split(strings.TrimRight(text, " \t\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || indent < common {
			common = indent
		}
	}
	for i, l := range lines {
		if len(l) >= common && common > 0 {
			lines[i] = l[common:]
		}
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}

// joinBlock joins tag lines, dropping surrounding blank lines.
func joinBlock(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}

// normalizeParagraphs collapses whitespace inside paragraphs and separates
// paragraphs by a blank line.
func normalizeParagraphs(lines []string) string {
	var (
		paragraphs []string
		words      []string
	)
	flush := func() {
		if len(words) > 0 {
			paragraphs = append(paragraphs, strings.Join(words, " "))
			words = nil
		}
	}
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) == 0 {
			flush()
			continue
		}
		words = append(words, fields...)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}
