package record

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Loose schemas for the three artifact kinds. They pin down structure and
// the reserved key names without forbidding extra fields, so artifacts
// written by older revisions still validate.
const (
	stepDataSchema = `{
    "type": "array",
    "items": {
        "type": "object",
        "required": ["absolutes", "info", "individual_calls"],
        "properties": {
            "absolutes": {
                "type": "object",
                "additionalProperties": {"type": "number"}
            },
            "info": {
                "type": "object",
                "required": ["STEP_NUMBER", "START_TIME", "STOP_TIME"],
                "properties": {
                    "STEP_NUMBER": {"type": "integer"},
                    "START_TIME": {"type": "number"},
                    "STOP_TIME": {"type": "number"}
                }
            },
            "individual_calls": {
                "type": "object",
                "additionalProperties": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": ["time", "crono_counter"],
                        "properties": {
                            "time": {"type": "number"},
                            "crono_counter": {"type": "integer"}
                        }
                    }
                }
            }
        }
    }
}`

	summarySchema = `{
    "type": "object",
    "additionalProperties": {
        "type": "object",
        "required": ["mean", "min", "max", "quantile_filtered"],
        "properties": {
            "mean": {"type": "number"},
            "min": {"type": "number"},
            "max": {"type": "number"},
            "quantile_filtered": {"type": "number"}
        }
    }
}`

	memorySchema = `{
    "type": "array",
    "items": {
        "type": "object",
        "required": ["info", "data"],
        "properties": {
            "info": {
                "type": "object",
                "required": ["STEP_NUMBER", "START_TIME", "STOP_TIME"]
            },
            "data": {
                "type": "object",
                "additionalProperties": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": ["total memory usage", "crono_counter"],
                        "properties": {
                            "total memory usage": {"type": "integer"},
                            "crono_counter": {"type": "integer"},
                            "top_memory_objects": {
                                "type": "array",
                                "items": {
                                    "type": "array",
                                    "minItems": 2,
                                    "maxItems": 2
                                }
                            }
                        }
                    }
                }
            }
        }
    }
}`
)

var (
	compiledStepData = mustCompile("step_data.json", stepDataSchema)
	compiledSummary  = mustCompile("summary.json", summarySchema)
	compiledMemory   = mustCompile("memory.json", memorySchema)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("adding schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// ValidateStepData checks decoded step-data JSON against the artifact
// schema.
func ValidateStepData(doc any) error {
	return validate(compiledStepData, "step data", doc)
}

// ValidateSummary checks decoded summary JSON against the artifact schema.
func ValidateSummary(doc any) error {
	return validate(compiledSummary, "summary", doc)
}

// ValidateMemory checks decoded memory JSON against the artifact schema.
func ValidateMemory(doc any) error {
	return validate(compiledMemory, "memory", doc)
}

func validate(schema *jsonschema.Schema, kind string, doc any) error {
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid %s artifact: %w", kind, err)
	}
	return nil
}
