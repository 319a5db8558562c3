package core

// sniff.go picks the delimiter and quoting convention of a source from a
// sample of its first non-empty lines.
//
// Every candidate delimiter splits the sample (quoted spans are not split).
// A candidate scores the share of lines on which it yields its most common
// field count, counting only counts of two or more. The best share wins and
// ties go to the earlier candidate.

import (
	"regexp"
	"strings"
)

var (
	doubleQuotedField = regexp.MustCompile(`(?m)(?:^|[^\w"'\n])"[^"\n]*"(?:$|[^\w"'\n])`)
	singleQuotedField = regexp.MustCompile(`(?m)(?:^|[^\w"'\n])'[^'\n]*'(?:$|[^\w"'\n])`)
)

// Sniff chooses a DelimiterProfile for sample, the raw text of the first
// lines of a source. Candidates are tried in priority order.
func Sniff(sample string, candidates []rune) (DelimiterProfile, error) {
	if len(candidates) == 0 {
		candidates = DefaultDelimiters
	}

	quote := detectQuote(sample)
	escape := detectEscape(sample, quote)

	var (
		best      rune
		bestShare float64
		found     bool
	)
	for _, delim := range candidates {
		counts := fieldCounts(sample, delim, quote, escape)
		_, share := consistency(counts)
		if share > bestShare {
			best, bestShare, found = delim, share, true
		}
	}

	if !found {
		return DelimiterProfile{}, &AmbiguousDelimiterError{
			Lines:      countNonEmptyLines(sample),
			Candidates: candidates,
		}
	}

	return DelimiterProfile{Delimiter: best, Quote: quote, Escape: escape}, nil
}

// detectQuote prefers the double quote unless single-quoted fields are
// strictly more common in the sample.
func detectQuote(sample string) rune {
	double := len(doubleQuotedField.FindAllStringIndex(sample, -1))
	single := len(singleQuotedField.FindAllStringIndex(sample, -1))
	if single > double {
		return '\''
	}
	return '"'
}

func detectEscape(sample string, quote rune) Escape {
	if strings.Contains(sample, `\`+string(quote)) {
		return EscapeBackslash
	}
	return EscapeDoubled
}

// fieldCounts returns the number of fields on each non-empty logical line.
func fieldCounts(sample string, delim, quote rune, escape Escape) []int {
	var (
		counts     []int
		runes      = []rune(sample)
		fields     = 1
		empty      = true
		inQuote    = false
		fieldStart = true
		pendingSep = false
	)

	endLine := func() {
		if !empty {
			counts = append(counts, fields)
		}
		fields, empty, fieldStart, pendingSep = 1, true, true, false
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inQuote {
			switch {
			case escape == EscapeBackslash && r == '\\':
				i++
			case r == quote:
				if escape == EscapeDoubled && i+1 < len(runes) && runes[i+1] == quote {
					i++
				} else {
					inQuote = false
				}
			}
			continue
		}

		switch {
		case r == '\n' || r == '\r':
			endLine()
			continue
		case delim == WhitespaceRun && (r == ' ' || r == '\t'):
			if !empty {
				pendingSep = true
				fieldStart = true
			}
			continue
		case r == delim:
			fields++
			fieldStart = true
			empty = false
			continue
		}

		if pendingSep {
			fields++
			pendingSep = false
		}
		if r == quote && fieldStart {
			inQuote = true
		}
		fieldStart = false
		empty = false
	}
	endLine()

	return counts
}

// consistency returns the most common field count of at least two and the
// share of lines that have it.
func consistency(counts []int) (int, float64) {
	if len(counts) == 0 {
		return 0, 0
	}
	freq := make(map[int]int)
	for _, c := range counts {
		if c >= 2 {
			freq[c]++
		}
	}
	bestN, bestF := 0, 0
	for n, f := range freq {
		if f > bestF || (f == bestF && n > bestN) {
			bestN, bestF = n, f
		}
	}
	return bestN, float64(bestF) / float64(len(counts))
}

func countNonEmptyLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
