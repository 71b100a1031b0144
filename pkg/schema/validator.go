// Package schema validates policy documents against the engine's JSON
// Schema before they reach the admission pipeline.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/concord-labs/concord/pkg/contracts"
)

//go:embed policy.schema.json
var policySchema []byte

const policySchemaURL = "https://concord.dev/schemas/policy.schema.json"

// Validator checks raw policy documents against the policy schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded policy schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(policySchemaURL, bytes.NewReader(policySchema)); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	s, err := compiler.Compile(policySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Validator{schema: s}, nil
}

// ValidatePolicy checks a raw JSON policy document. A schema violation
// is reported as a ValidationError naming the offending field.
func (v *Validator) ValidatePolicy(raw []byte) (*contracts.Policy, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &contracts.ValidationError{Field: "policy", Detail: "document is not valid JSON"}
	}

	if err := v.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if ok := asValidationError(err, &verr); ok {
			leaf := leafCause(verr)
			return nil, &contracts.ValidationError{
				Field:  fieldFromLocation(leaf.InstanceLocation),
				Detail: leaf.Message,
			}
		}
		return nil, &contracts.ValidationError{Field: "policy", Detail: err.Error()}
	}

	var policy contracts.Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, &contracts.ValidationError{Field: "policy", Detail: err.Error()}
	}
	return &policy, nil
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		*target = verr
		return true
	}
	return false
}

// leafCause walks to the deepest cause, which names the field that
// actually violated the schema.
func leafCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

func fieldFromLocation(location string) string {
	if location == "" || location == "/" {
		return "policy"
	}
	return strings.TrimPrefix(strings.ReplaceAll(location, "/", "."), ".")
}
