package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outcomeSchemaDoc is the JSON Schema every agent-authored outcome.json
// must satisfy before its contents are trusted. It mirrors the schema in
// the specification: outcome is required and restricted to the four
// known values (plus the fail/failure aliases), context_updates is an
// optional flat string map.
const outcomeSchemaDoc = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["outcome"],
	"properties": {
		"outcome": {
			"type": "string",
			"enum": ["success", "partial_success", "error", "retry", "fail", "failure"]
		},
		"context_updates": {
			"type": "object",
			"additionalProperties": { "type": "string" }
		}
	}
}`

var (
	outcomeSchemaOnce sync.Once
	outcomeSchema     *jsonschema.Schema
	outcomeSchemaErr  error
)

func compiledOutcomeSchema() (*jsonschema.Schema, error) {
	outcomeSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		const resourceName = "outcome.schema.json"
		if err := compiler.AddResource(resourceName, bytes.NewReader([]byte(outcomeSchemaDoc))); err != nil {
			outcomeSchemaErr = fmt.Errorf("compile outcome schema: %w", err)
			return
		}
		schema, err := compiler.Compile(resourceName)
		if err != nil {
			outcomeSchemaErr = fmt.Errorf("compile outcome schema: %w", err)
			return
		}
		outcomeSchema = schema
	})
	return outcomeSchema, outcomeSchemaErr
}

// ValidateAgentOutcomeSchema checks raw outcome.json bytes against the
// schema before the caller ever unmarshals them into a Go struct, so a
// malformed agent response is reported as a schema violation rather than
// a cryptic JSON decode error downstream.
func ValidateAgentOutcomeSchema(b []byte) error {
	schema, err := compiledOutcomeSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("outcome.json is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return nil
}
