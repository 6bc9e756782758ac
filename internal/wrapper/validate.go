package wrapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// compiledSchema compiles the wrapper grammar exactly once. The schema is a
// package constant, so per-response recompilation would be pure overhead.
func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(BuildSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal wrapper schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("wrapper.schema.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add wrapper schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("wrapper.schema.json")
	})
	return compiled, compileErr
}

// ValidateResponse checks a raw model response against the wrapper grammar
// before it is allowed into the pipeline.
func ValidateResponse(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match wrapper schema: %w", err)
	}
	return nil
}
