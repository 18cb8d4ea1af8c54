package app

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON schema of T into a plain map, inlined
// (no $ref) so it can be pasted into a prompt or handed to a provider.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T

	schema := reflector.Reflect(v)

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal schema: %v", err))
	}

	var params map[string]any
	if err := json.Unmarshal(schemaBytes, &params); err != nil {
		panic(fmt.Sprintf("failed to unmarshal schema to map: %v", err))
	}
	delete(params, "$schema")
	return params
}

var (
	quizSchema         = GenerateSchema[[]Question]()
	openQuestionSchema = GenerateSchema[[]OpenQuestion]()
	evaluationSchema   = GenerateSchema[Evaluation]()
)

func schemaText(s map[string]any) string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
