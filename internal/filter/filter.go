// Package filter implements chunk predicates and their AND/OR chains.
package filter

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// Operator links a filter to the result accumulated before it
type Operator int

const (
	AND Operator = iota
	OR
)

func (o Operator) String() string {
	if o == OR {
		return "OR"
	}
	return "AND"
}

// ParseOperator accepts AND, OR, && and ||
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND", "&&", "":
		return AND, nil
	case "OR", "||":
		return OR, nil
	}
	return 0, errors.FilterConfiguration(fmt.Sprintf("unknown operator %q", s), nil)
}

// Comparator relates an extracted value to the literal
type Comparator int

const (
	Equal Comparator = iota
	NotEqual
	Greater
	GreaterEqual
	Less
	LessEqual
)

var comparatorSymbols = map[Comparator]string{
	Equal:        "==",
	NotEqual:     "!=",
	Greater:      ">",
	GreaterEqual: ">=",
	Less:         "<",
	LessEqual:    "<=",
}

func (c Comparator) String() string {
	if s, ok := comparatorSymbols[c]; ok {
		return s
	}
	return fmt.Sprintf("Comparator(%d)", int(c))
}

// ParseComparator accepts the symbolic forms, with = as an alias for ==
func ParseComparator(s string) (Comparator, error) {
	s = strings.TrimSpace(s)
	if s == "=" {
		return Equal, nil
	}
	for c, sym := range comparatorSymbols {
		if sym == s {
			return c, nil
		}
	}
	return 0, errors.FilterConfiguration(fmt.Sprintf("unknown comparator %q", s), nil)
}

func compare[T cmp.Ordered](c Comparator, v, literal T) bool {
	r := cmp.Compare(v, literal)
	switch c {
	case Equal:
		return r == 0
	case NotEqual:
		return r != 0
	case Greater:
		return r > 0
	case GreaterEqual:
		return r >= 0
	case Less:
		return r < 0
	case LessEqual:
		return r <= 0
	}
	return false
}

// Filter is one predicate in a chain
type Filter interface {
	Type() Type
	Operator() Operator
	Comparator() Comparator
	// Matches extracts the attribute and compares it. No value never matches.
	Matches(reg *version.Registry, c *model.Chunk) bool
	// SetValue replaces the literal, parsed the same way as in New
	SetValue(text string) error
	ValueString() string
	// Clone returns a copy sharing no mutable state with the receiver
	Clone() Filter
	String() string
}

// valueFilter is the generic Filter over an ordered value type. All
// attribute-specific behavior lives in its policy.
type valueFilter[T cmp.Ordered] struct {
	typ    Type
	op     Operator
	cmp    Comparator
	value  T
	policy *policy[T]
}

func (f *valueFilter[T]) Type() Type             { return f.typ }
func (f *valueFilter[T]) Operator() Operator     { return f.op }
func (f *valueFilter[T]) Comparator() Comparator { return f.cmp }
func (f *valueFilter[T]) ValueString() string    { return f.policy.format(f.value) }

func (f *valueFilter[T]) Matches(reg *version.Registry, c *model.Chunk) bool {
	v, ok := f.policy.extract(reg, c)
	if !ok {
		return false
	}
	return compare(f.cmp, v, f.value)
}

func (f *valueFilter[T]) SetValue(text string) error {
	v, err := f.policy.parse(text)
	if err != nil {
		return errors.FilterConfiguration(fmt.Sprintf("invalid %s value %q", f.typ, text), err)
	}
	f.value = v
	return nil
}

func (f *valueFilter[T]) Clone() Filter {
	clone := *f
	return &clone
}

func (f *valueFilter[T]) String() string {
	return fmt.Sprintf("%s %s %s", f.typ, f.cmp, f.ValueString())
}

// New builds a filter of type t with the literal parsed from text
func New(t Type, op Operator, c Comparator, text string) (Filter, error) {
	if op != AND && op != OR {
		return nil, errors.FilterConfiguration(fmt.Sprintf("unknown operator %d", int(op)), nil)
	}
	if _, ok := comparatorSymbols[c]; !ok {
		return nil, errors.FilterConfiguration(fmt.Sprintf("unknown comparator %d", int(c)), nil)
	}

	var f Filter
	switch t {
	case TypeYPos:
		f = newValueFilter(t, op, c, yPosPolicy)
	case TypeInhabitedTime:
		f = newValueFilter(t, op, c, inhabitedTimePolicy)
	case TypeLastUpdate:
		f = newValueFilter(t, op, c, lastUpdatePolicy)
	case TypeStatus:
		f = newValueFilter(t, op, c, statusPolicy)
	case TypeDataVersion:
		f = newValueFilter(t, op, c, dataVersionPolicy)
	default:
		return nil, errors.FilterConfiguration(fmt.Sprintf("unknown filter type %d", int(t)), nil)
	}

	if !t.supports(c) {
		return nil, errors.FilterConfiguration(fmt.Sprintf("%s does not support %s", t, c), nil)
	}
	if err := f.SetValue(text); err != nil {
		return nil, err
	}
	return f, nil
}

func newValueFilter[T cmp.Ordered](t Type, op Operator, c Comparator, p *policy[T]) *valueFilter[T] {
	return &valueFilter[T]{typ: t, op: op, cmp: c, policy: p}
}

// Spec is the declarative form of a filter, as found in job files
type Spec struct {
	Attribute  string `yaml:"attribute" json:"attribute"`
	Operator   string `yaml:"operator" json:"operator"`
	Comparator string `yaml:"comparator" json:"comparator"`
	Value      string `yaml:"value" json:"value"`
}

// FromSpec builds a filter from its declarative form
func FromSpec(s Spec) (Filter, error) {
	t, err := ParseType(s.Attribute)
	if err != nil {
		return nil, err
	}
	op, err := ParseOperator(s.Operator)
	if err != nil {
		return nil, err
	}
	c, err := ParseComparator(s.Comparator)
	if err != nil {
		return nil, err
	}
	return New(t, op, c, s.Value)
}
