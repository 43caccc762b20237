package validation

import (
	"encoding/json"

	"github.com/rendis/evoflow/pkg/schema"
)

// ParseAndValidate decodes a raw JSON definition, running the structural and
// semantic validators in order. Structural failures stop the pipeline;
// semantic checks assume a well-formed document.
func ParseAndValidate(raw []byte) (*schema.WorkflowDefinition, *schema.ValidationResult) {
	result := ValidateStructure(raw)
	if !result.Valid() {
		return nil, result
	}

	var def schema.WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		result.AddError("$", "INVALID_JSON", err.Error())
		return nil, result
	}

	result.Merge(ValidateSemantics(&def))
	if !result.Valid() {
		return nil, result
	}
	return &def, result
}

// ValidateDefinition runs semantic validation on an already-decoded
// definition, for callers that build definitions programmatically.
func ValidateDefinition(def *schema.WorkflowDefinition) error {
	return ValidateSemantics(def).ToError()
}
