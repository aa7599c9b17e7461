package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://ddt.game/schemas/"

// Schema names shipped with the package.
const (
	SchemaEnvelope      = "envelope.schema.json"
	SchemaCommand       = "command.schema.json"
	SchemaLoginResponse = "login_response.schema.json"
)

// Validator checks raw frames against one of the embedded JSON schemas.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the inbound envelope schema.
func NewValidator() (*Validator, error) {
	return NewSchemaValidator(SchemaEnvelope)
}

// NewSchemaValidator compiles the named embedded schema.
func NewSchemaValidator(name string) (*Validator, error) {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := schemaBaseURL + name
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Validator{schema: s}, nil
}

// Validate reports a decode error when raw is not JSON or does not match
// the schema.
func (v *Validator) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Wrap(CodeDecode, "decode frame", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Wrap(CodeDecode, "schema", err)
	}
	return nil
}
