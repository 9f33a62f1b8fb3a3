package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"voicebot/internal/domain"
)

// Schema builds the JSON-schema object for a parameter list. Parameters
// without a default are listed as required.
func Schema(params []domain.Param) (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		if _, dup := s.Properties[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter: %s", p.Name)
		}
		prop := &jsonschema.Schema{
			Type:        p.Kind.SchemaType(),
			Description: p.Description,
		}
		if p.Required() {
			s.Required = append(s.Required, p.Name)
		} else {
			def, err := json.Marshal(p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: encode default: %w", p.Name, err)
			}
			prop.Default = def
		}
		s.Properties[p.Name] = prop
	}
	return s, nil
}

// SchemaMap renders a schema as the generic map the chat API expects.
func SchemaMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return m, nil
}

// CoerceArgs decodes the model's JSON argument string and converts each
// declared parameter to its kind. Defaults fill absent optional parameters;
// undeclared keys are dropped.
func CoerceArgs(params []domain.Param, raw string) (domain.Args, error) {
	decoded := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("malformed arguments: %w", err)
		}
		if decoded == nil {
			decoded = map[string]any{}
		}
	}

	args := make(domain.Args, len(params))
	for _, p := range params {
		v, present := decoded[p.Name]
		if !present || v == nil {
			if p.Required() {
				return nil, fmt.Errorf("missing required argument: %s", p.Name)
			}
			def, err := normalize(p.Default)
			if err != nil {
				return nil, fmt.Errorf("argument %s: default: %w", p.Name, err)
			}
			args[p.Name] = def
			continue
		}
		cv, err := coerce(p.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", p.Name, err)
		}
		args[p.Name] = cv
	}
	return args, nil
}

func coerce(kind domain.ParamKind, v any) (any, error) {
	switch kind {
	case domain.ParamString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case domain.ParamNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, nil
			}
		}
	case domain.ParamBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, v)
}

// normalize gives Go defaults the shape JSON decoding produces (float64 for
// every number).
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}
