package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ReflectSchema builds an inline JSON schema for v's type. Struct fields use
// their json tags; `jsonschema:"description=..."` tags become descriptions.
func ReflectSchema(v any) (json.RawMessage, error) {
	r := &invopop.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return raw, nil
}

// compiledSchema validates JSON documents against a compiled schema.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func compileSchema(name string, raw json.RawMessage) (*compiledSchema, error) {
	s, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &compiledSchema{schema: s}, nil
}

// CompileSchema compiles raw for later validation with Validate.
func CompileSchema(name string, raw json.RawMessage) (*Validator, error) {
	c, err := compileSchema(name, raw)
	if err != nil {
		return nil, err
	}
	return &Validator{c: c}, nil
}

// Validator checks JSON documents against a schema.
type Validator struct {
	c *compiledSchema
}

// Validate returns a readable error describing every violation in doc.
func (v *Validator) Validate(doc json.RawMessage) error {
	return v.c.validate(doc)
}

func (c *compiledSchema) validate(doc json.RawMessage) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return flattenValidationError(err)
	}
	return nil
}

func flattenValidationError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
