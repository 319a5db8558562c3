package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Width measures how many terminal cells a string occupies.
type Width interface {
	StringWidth(s string) int
}

// CodepointWidth counts one cell per code point.
type CodepointWidth struct{}

func (CodepointWidth) StringWidth(s string) int { return utf8.RuneCountInString(s) }

// EastAsianWidth counts wide and fullwidth characters as two cells and
// combining marks as zero.
type EastAsianWidth struct {
	cond *runewidth.Condition
}

// NewEastAsianWidth returns a width that treats ambiguous characters as
// narrow, like most western terminals.
func NewEastAsianWidth() EastAsianWidth {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = false
	return EastAsianWidth{cond: cond}
}

func (e EastAsianWidth) StringWidth(s string) int {
	if e.cond == nil {
		return runewidth.StringWidth(s)
	}
	return e.cond.StringWidth(s)
}

// Width names accepted by ParseWidth.
const (
	WidthCodepoint = "codepoint"
	WidthEastAsian = "eastasian"
)

// ParseWidth selects a Width by name.
func ParseWidth(name string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case WidthCodepoint:
		return CodepointWidth{}, nil
	case "", WidthEastAsian, "east-asian":
		return NewEastAsianWidth(), nil
	}
	return nil, fmt.Errorf("invalid display width %q: must be codepoint or eastasian", name)
}
