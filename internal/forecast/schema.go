package forecast

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "forecast.json"

// forecastSchema describes one forecast object. Quantile ordering and NaN
// checks stay with the engine validator.
const forecastSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["symbol", "q10", "q50", "q90", "prob_up"],
  "properties": {
    "symbol": {"type": "string", "minLength": 1},
    "as_of": {"type": "string"},
    "timestamp": {"type": "string"},
    "q10": {"type": "number"},
    "q50": {"type": "number"},
    "q90": {"type": "number"},
    "prob_up": {"type": "number", "minimum": 0, "maximum": 1},
    "volatility": {"type": "number", "minimum": 0},
    "horizon_days": {"type": "integer", "minimum": 0},
    "unit": {"enum": ["price", "return"]}
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(forecastSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile(schemaURL)
	})
	return schemaCompiled, schemaErr
}

// ValidateObject checks a decoded forecast object against the schema
func ValidateObject(v interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile forecast schema: %w", err)
	}
	return schema.Validate(v)
}
