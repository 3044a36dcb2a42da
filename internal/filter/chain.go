package filter

import (
	"strings"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// Chain is a flat sequence of filters folded left to right. Precedence is
// purely positional: a AND b OR c is (a AND b) OR c.
type Chain []Filter

// Matches folds the chain over one chunk. The first filter's operator is
// ignored. An empty chain matches every chunk.
func (ch Chain) Matches(reg *version.Registry, c *model.Chunk) bool {
	if len(ch) == 0 {
		return true
	}
	acc := ch[0].Matches(reg, c)
	for _, f := range ch[1:] {
		switch f.Operator() {
		case AND:
			if acc {
				acc = f.Matches(reg, c)
			}
		case OR:
			if !acc {
				acc = f.Matches(reg, c)
			}
		}
	}
	return acc
}

// Clone returns a chain of independent filter copies
func (ch Chain) Clone() Chain {
	if ch == nil {
		return nil
	}
	out := make(Chain, len(ch))
	for i, f := range ch {
		out[i] = f.Clone()
	}
	return out
}

// String renders the chain in query syntax
func (ch Chain) String() string {
	var b strings.Builder
	for i, f := range ch {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(f.Operator().String())
			b.WriteString(" ")
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// FromSpecs builds a chain from declarative filters
func FromSpecs(specs []Spec) (Chain, error) {
	ch := make(Chain, 0, len(specs))
	for _, s := range specs {
		f, err := FromSpec(s)
		if err != nil {
			return nil, err
		}
		ch = append(ch, f)
	}
	return ch, nil
}
