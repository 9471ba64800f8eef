package feed

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaResource = "neows-feed.schema.json"

//go:embed schema/feed.schema.json
var feedSchemaJSON []byte

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// envelopeSchema returns the compiled feed envelope schema, compiling it on first use
func envelopeSchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(feedSchemaJSON))
		if err != nil {
			compiledSchemaErr = fmt.Errorf("failed to decode feed schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaResource, doc); err != nil {
			compiledSchemaErr = fmt.Errorf("failed to add feed schema: %w", err)
			return
		}

		compiledSchema, compiledSchemaErr = c.Compile(schemaResource)
	})
	return compiledSchema, compiledSchemaErr
}

// validateEnvelope checks body against the feed envelope schema
func validateEnvelope(body []byte) error {
	schema, err := envelopeSchema()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("response does not match the feed schema: %w", err)
	}
	return nil
}
