package repl

import "strings"

// scanResult is what scan found in the input buffer.
type scanResult struct {
	// Statements terminated by a semicolon, without it.
	Statements []string

	// Rest is the unterminated tail of the buffer.
	Rest string

	// Pending names what the tail still needs: a quote character, "/*" for
	// an open block comment, ";" for an unterminated statement, or "" when
	// the tail holds nothing but whitespace and comments.
	Pending string
}

// scan splits text on semicolons outside quotes and comments. Quotes are
// closed by the same character; a doubled quote character is an escape.
func scan(text string) scanResult {
	var (
		res         scanResult
		start       int
		quote       byte
		lineComment bool
		block       bool
		content     bool
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		var next byte
		if i+1 < len(text) {
			next = text[i+1]
		}

		switch {
		case lineComment:
			if c == '\n' {
				lineComment = false
			}
		case block:
			if c == '*' && next == '/' {
				block = false
				i++
			}
		case quote != 0:
			if c == quote {
				if next == quote {
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			content = true
		case c == '-' && next == '-':
			lineComment = true
			i++
		case c == '/' && next == '*':
			block = true
			i++
		case c == ';':
			if stmt := strings.TrimSpace(text[start:i]); content && stmt != "" {
				res.Statements = append(res.Statements, stmt)
			}
			start = i + 1
			content = false
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		default:
			content = true
		}
	}

	res.Rest = text[start:]
	switch {
	case quote != 0:
		res.Pending = string(quote)
	case block:
		res.Pending = "/*"
	case content:
		res.Pending = ";"
	}
	return res
}

// Prompts shown by the loop.
const (
	PrimaryPrompt = "sqlite> "
)

// continuationPrompt hints at what the buffered statement is missing.
func continuationPrompt(pending string) string {
	switch pending {
	case "":
		return PrimaryPrompt
	case ";":
		return "    -> "
	case "/*":
		return "   /*> "
	default:
		return "    " + pending + "> "
	}
}
