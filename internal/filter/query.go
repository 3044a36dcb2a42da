package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ViaSnake/mcaselector/internal/errors"
)

var termPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z_-]*)\s*(==|!=|>=|<=|=|>|<)\s*(.+)$`)

// Parse builds a chain from query text such as
//
//	yPos >= 0 AND yPos <= 10 OR InhabitedTime > 1h
//
// Terms are joined by AND/OR (or && and ||) and evaluated left to right.
// Literals may be double-quoted. Blank text yields an empty chain.
func Parse(query string) (Chain, error) {
	terms, ops, err := splitQuery(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return Chain{}, nil
	}

	ch := make(Chain, 0, len(terms))
	for i, term := range terms {
		m := termPattern.FindStringSubmatch(term)
		if m == nil {
			return nil, errors.FilterConfiguration(fmt.Sprintf("malformed filter term %q", term), nil).
				WithDetail("query", query)
		}
		t, err := ParseType(m[1])
		if err != nil {
			return nil, err
		}
		c, err := ParseComparator(m[2])
		if err != nil {
			return nil, err
		}
		f, err := New(t, ops[i], c, unquote(strings.TrimSpace(m[3])))
		if err != nil {
			return nil, err
		}
		ch = append(ch, f)
	}
	return ch, nil
}

// splitQuery cuts the query at top-level operators outside quotes. ops[i]
// is the operator preceding terms[i]; ops[0] is always AND.
func splitQuery(query string) ([]string, []Operator, error) {
	var (
		terms   []string
		ops     = []Operator{AND}
		current strings.Builder
		quoted  bool
	)
	flush := func() error {
		term := strings.TrimSpace(current.String())
		current.Reset()
		if term == "" {
			return errors.FilterConfiguration(fmt.Sprintf("missing filter term in %q", query), nil)
		}
		terms = append(terms, term)
		return nil
	}

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '"' {
			quoted = !quoted
			current.WriteRune(r)
			continue
		}
		if !quoted {
			if op, n, ok := operatorAt(runes, i); ok {
				if err := flush(); err != nil {
					return nil, nil, err
				}
				ops = append(ops, op)
				i += n - 1
				continue
			}
		}
		current.WriteRune(r)
	}
	if quoted {
		return nil, nil, errors.FilterConfiguration(fmt.Sprintf("unterminated quote in %q", query), nil)
	}

	if strings.TrimSpace(current.String()) == "" && len(terms) == 0 {
		return nil, nil, nil
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return terms, ops, nil
}

// operatorAt matches a standalone AND/OR word or a &&/|| token at i
func operatorAt(runes []rune, i int) (Operator, int, bool) {
	rest := string(runes[i:])
	switch {
	case strings.HasPrefix(rest, "&&"):
		return AND, 2, true
	case strings.HasPrefix(rest, "||"):
		return OR, 2, true
	}
	if i > 0 && !unicode.IsSpace(runes[i-1]) {
		return 0, 0, false
	}
	for _, w := range []struct {
		word string
		op   Operator
	}{{"AND", AND}, {"OR", OR}} {
		n := len(w.word)
		if len(runes)-i < n || !strings.EqualFold(string(runes[i:i+n]), w.word) {
			continue
		}
		if i+n < len(runes) && !unicode.IsSpace(runes[i+n]) {
			continue
		}
		return w.op, n, true
	}
	return 0, 0, false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
