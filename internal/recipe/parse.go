package recipe

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"pantry/internal/services"
)

// ErrRecipeParse reports a completion that does not contain a **title** span.
var ErrRecipeParse = fmt.Errorf("%w: recipe parse failure", services.ErrValidation)

// titlePattern matches the first **...** span on a single line. The class
// excludes every line terminator, not just \n.
var titlePattern = regexp.MustCompile("\\*\\*([^\n\r\u2028\u2029]*?)\\*\\*")

// Result is a parsed recipe.
type Result struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

// String renders the title followed by one step per line. With no steps the
// title is followed by a single newline.
func (r Result) String() string {
	return r.Title + "\n" + strings.Join(r.Steps, "\n")
}

// Parse extracts the title and numbered steps from a completion body.
//
// Steps are found by a left-to-right, non-overlapping scan for "<n>.<ws>"
// followed by the shortest text that runs up to either "<ws><n>.<ws>" or the
// end of the body, never across a line terminator. Each step is rendered as
// "<n>. <trimmed text>".
func Parse(body string) (Result, error) {
	match := titlePattern.FindStringSubmatch(body)
	if match == nil {
		return Result{}, fmt.Errorf("%w: no **title** span in response (snippet: %s)", ErrRecipeParse, snippet(body))
	}
	return Result{
		Title: trimSpace(match[1]),
		Steps: scanSteps(body),
	}, nil
}

func scanSteps(body string) []string {
	steps := make([]string, 0)
	pos := 0
	for pos < len(body) {
		found := false
		for start := pos; start < len(body); {
			number, text, end, ok := stepAt(body, start)
			if ok {
				steps = append(steps, number+". "+trimSpace(text))
				pos = end
				found = true
				break
			}
			_, size := utf8.DecodeRuneInString(body[start:])
			start += size
		}
		if !found {
			break
		}
	}
	return steps
}

// stepAt tries to match a step beginning exactly at start. end is where the
// match stops; the terminating marker is not consumed.
func stepAt(body string, start int) (number, text string, end int, ok bool) {
	digitsEnd := scanDigits(body, start)
	if digitsEnd == start || digitsEnd >= len(body) || body[digitsEnd] != '.' {
		return "", "", 0, false
	}
	r, size := utf8.DecodeRuneInString(body[digitsEnd+1:])
	if size == 0 || !isSpace(r) {
		return "", "", 0, false
	}
	textStart := digitsEnd + 1 + size

	for p := textStart; ; {
		if p == len(body) || nextStepAhead(body, p) {
			return body[start:digitsEnd], body[textStart:p], p, true
		}
		r, size := utf8.DecodeRuneInString(body[p:])
		if isLineTerminator(r) {
			return "", "", 0, false
		}
		p += size
	}
}

// nextStepAhead reports whether "<ws><digits>.<ws>" begins at p.
func nextStepAhead(body string, p int) bool {
	r, size := utf8.DecodeRuneInString(body[p:])
	if size == 0 || !isSpace(r) {
		return false
	}
	digitsStart := p + size
	digitsEnd := scanDigits(body, digitsStart)
	if digitsEnd == digitsStart || digitsEnd >= len(body) || body[digitsEnd] != '.' {
		return false
	}
	r, size = utf8.DecodeRuneInString(body[digitsEnd+1:])
	return size > 0 && isSpace(r)
}

func scanDigits(body string, i int) int {
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	return i
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}

// isSpace matches the whitespace set recognised by ECMAScript: Unicode space
// separators, line terminators, and the BOM, but not U+0085.
func isSpace(r rune) bool {
	if r == '\ufeff' {
		return true
	}
	if r == '\u0085' {
		return false
	}
	return unicode.IsSpace(r)
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func snippet(body string) string {
	clean := strings.Join(strings.Fields(body), " ")
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if len(runes) > 120 {
		return string(runes[:120]) + "..."
	}
	return clean
}
