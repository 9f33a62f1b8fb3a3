package domain

import (
	"context"
	"math"
)

// Tool is a callable capability the chat model may select.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	// Execute receives arguments already coerced against Params and returns a
	// JSON-serializable result.
	Execute(ctx context.Context, args Args) (any, error)
}

// ParamKind tags the primitive type of a tool parameter.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamNumber
	ParamBoolean
)

// SchemaType returns the JSON-schema type name of the kind.
func (k ParamKind) SchemaType() string {
	switch k {
	case ParamNumber:
		return "number"
	case ParamBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func (k ParamKind) String() string { return k.SchemaType() }

// Param describes one named tool parameter. A parameter without a default is
// required.
type Param struct {
	Name        string
	Description string
	Kind        ParamKind
	Default     any
}

func StringParam(name, description string) Param {
	return Param{Name: name, Description: description, Kind: ParamString}
}

func NumberParam(name, description string) Param {
	return Param{Name: name, Description: description, Kind: ParamNumber}
}

func BoolParam(name, description string) Param {
	return Param{Name: name, Description: description, Kind: ParamBoolean}
}

// WithDefault returns a copy of p that is optional and falls back to v.
func (p Param) WithDefault(v any) Param {
	p.Default = v
	return p
}

func (p Param) Required() bool { return p.Default == nil }

// Args holds coerced tool arguments: strings, float64 numbers and bools.
type Args map[string]any

func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a Args) Number(key string) float64 {
	f, _ := a[key].(float64)
	return f
}

// Int returns the number argument truncated toward zero, saturating at the
// int range. NaN reads as 0.
func (a Args) Int(key string) int {
	f := a.Number(key)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(math.Trunc(f))
}

func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}
