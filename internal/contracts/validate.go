package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is a single schema validation failure with field-level detail.
type ValidationError struct {
	Field       string      `json:"field"`
	Description string      `json:"description"`
	Value       interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationResult is the outcome of validating a document against a schema.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

var (
	turnOutputLoader = gojsonschema.NewStringLoader(turnOutputSchema)
	canonLoader      = gojsonschema.NewStringLoader(canonSchema)
	promptPackLoader = gojsonschema.NewStringLoader(promptPackSchema)
	patchLoader      = gojsonschema.NewStringLoader(patchSchema)
)

// ValidateTurnOutput validates a TurnOutput value against its schema.
func ValidateTurnOutput(t TurnOutput) (*ValidationResult, error) {
	return validateValue(t, turnOutputLoader)
}

// ValidateCanon validates a Canon value against the final canon schema (used at
// Phase 4's validation gate, see internal/canon).
func ValidateCanon(c Canon) (*ValidationResult, error) {
	return validateValue(c, canonLoader)
}

// ValidatePromptPack validates a generated PromptPack against its schema.
func ValidatePromptPack(p PromptPack) (*ValidationResult, error) {
	return validateValue(p, promptPackLoader)
}

// ValidatePatch validates a raw patch document's shape before op-by-op application.
func ValidatePatch(p Patch) (*ValidationResult, error) {
	return validateValue(p, patchLoader)
}

func validateValue(v interface{}, schemaLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for schema validation: %w", err)
	}
	return ValidateJSONAgainstLoader(data, schemaLoader)
}

// ValidateJSONAgainstLoader validates raw JSON bytes against a schema loader.
// Shared low-level entry point, mirrored from the provider-pack schema validator.
func ValidateJSONAgainstLoader(jsonData []byte, schemaLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	return ConvertResult(result), nil
}

// ConvertResult converts a gojsonschema result into a ValidationResult.
func ConvertResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	if !result.Valid() {
		for _, e := range result.Errors() {
			vr.Errors = append(vr.Errors, ValidationError{
				Field:       e.Field(),
				Description: e.Description(),
				Value:       e.Value(),
			})
		}
	}

	return vr
}
