// Package markup extracts the few field values clockon needs from portal pages.
// The portal output is consumed line by line, never as a parsed document. Each helper here
// encodes one positional assumption about that output so it can be tested on its own.
package markup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOddPairs is returned by Pairs when the token count can't be split into pairs.
var ErrOddPairs = errors.New("odd number of paired lines")

// Token is a single line of markup that matched at least one marker.
type Token struct {
	Line int    // 1-based line number in the source
	Text string // line content without the line terminator
}

// Scan returns the lines of text containing any of the given markers, in document order.
// line terminators (\n, \r\n) are stripped.
func Scan(text string, markers ...string) []Token {
	var res []Token
	num := 0
	for line := range strings.Lines(text) {
		num++
		line = strings.TrimRight(line, "\r\n")
		for _, m := range markers {
			if strings.Contains(line, m) {
				res = append(res, Token{Line: num, Text: line})
				break
			}
		}
	}
	return res
}

// AttrID returns the value of the ID attribute in an html line, e.g. `ID="CLKONBTN"` gives CLKONBTN.
// the first whitespace-separated field containing `ID=` is used; the value starts right after
// the opening quote and runs to the closing quote or the end of the field.
// returns false if no field contains `ID=`.
func AttrID(line string) (string, bool) {
	const marker = `ID="`
	for _, field := range strings.Fields(line) {
		idx := strings.Index(field, "ID=")
		if idx < 0 {
			continue
		}
		val := field[idx:]
		if len(val) <= len(marker) {
			return "", true
		}
		val = val[len(marker):]
		if end := strings.IndexByte(val, '"'); end >= 0 {
			val = val[:end]
		}
		return val, true
	}
	return "", false
}

// Inner returns the text content of an xml element on a single line, the text between the
// first '>' and the following '<'. returns an empty string if there is no '>'.
func Inner(line string) string {
	_, after, found := strings.Cut(line, ">")
	if !found {
		return ""
	}
	if end := strings.IndexByte(after, '<'); end >= 0 {
		return after[:end]
	}
	return after
}

// Pair is two consecutive tokens, e.g. a caption line followed by its enabled line.
type Pair struct {
	First  Token
	Second Token
}

// Pairs groups tokens into consecutive pairs in document order.
// returns ErrOddPairs if a token is left over.
func Pairs(tokens []Token) ([]Pair, error) {
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("%w, line %d is unpaired", ErrOddPairs, tokens[len(tokens)-1].Line)
	}
	res := make([]Pair, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		res = append(res, Pair{First: tokens[i], Second: tokens[i+1]})
	}
	return res, nil
}
