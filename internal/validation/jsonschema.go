package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// definitionSchema is the JSON Schema for workflow definitions. Structural
// rules only; cross-reference checks live in semantic.go.
const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "steps"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/step"}
    },
    "variables": {"type": "object"},
    "optimization": {"$ref": "#/$defs/optimization"},
    "metadata": {"type": "object"}
  },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "type": {"type": "string", "minLength": 1},
        "config": {"type": "object"},
        "depends_on": {"type": "array", "items": {"type": "string"}},
        "steps": {"type": "array", "items": {"$ref": "#/$defs/step"}},
        "on_success": {"type": "string"},
        "on_error": {"type": "string"},
        "condition": {"type": "string"},
        "skip_if": {"type": "string"},
        "retry": {
          "type": "object",
          "required": ["max_attempts"],
          "properties": {
            "max_attempts": {"type": "integer", "minimum": 1},
            "backoff_ms": {"type": "integer", "minimum": 0}
          }
        },
        "timeout_ms": {"type": "integer", "minimum": 0}
      }
    },
    "optimization": {
      "type": "object",
      "properties": {
        "population_size": {"type": "integer", "minimum": 2},
        "max_generations": {"type": "integer", "minimum": 1},
        "mutation_rate": {"type": "number", "minimum": 0, "maximum": 1},
        "crossover_rate": {"type": "number", "minimum": 0, "maximum": 1},
        "elite_count": {"type": "integer", "minimum": 0},
        "objectives": {"type": "array", "items": {"type": "string"}},
        "evaluators": {"type": "array", "items": {"type": "string"}},
        "constraints": {
          "type": "object",
          "properties": {
            "max_duration_ms": {"type": "integer", "minimum": 0},
            "max_cost": {"type": "number", "minimum": 0},
            "min_success_rate": {"type": "number", "minimum": 0, "maximum": 1}
          }
        }
      }
    }
  }
}`

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func compiledDefinitionSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(definitionSchema)))
		if err != nil {
			compileErr = fmt.Errorf("parse definition schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("workflow.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add definition schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("workflow.schema.json")
	})
	return compiledSchema, compileErr
}

// ValidateStructure checks a raw JSON definition against the workflow schema.
func ValidateStructure(raw []byte) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	sch, err := compiledDefinitionSchema()
	if err != nil {
		result.AddError("$", "SCHEMA_COMPILE", err.Error())
		return result
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		result.AddError("$", "INVALID_JSON", err.Error())
		return result
	}

	if err := sch.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			for _, cause := range flattenCauses(verr) {
				result.AddError(
					"/"+strings.Join(cause.InstanceLocation, "/"),
					"SCHEMA_VIOLATION",
					cause.Error(),
				)
			}
		} else {
			result.AddError("$", "SCHEMA_VIOLATION", err.Error())
		}
	}
	return result
}

// flattenCauses walks the validation error tree down to leaf causes.
func flattenCauses(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		leaves = append(leaves, flattenCauses(cause)...)
	}
	return leaves
}
