package rubric

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Rubric documents loaded from JSON are checked against this schema before
// decoding, so a malformed file is rejected with a precise error instead of
// silently decoding to zero values.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question_id", "max_marks"],
        "properties": {
          "question_id": {"type": "integer", "minimum": 1},
          "max_marks": {"type": "number", "minimum": 0},
          "expected_keywords": {
            "type": "array",
            "items": {"type": "string"}
          },
          "penalties": {
            "type": "object",
            "properties": {
              "length_penalty": {
                "type": "object",
                "properties": {
                  "min_words": {"type": "integer", "minimum": 0},
                  "deduct_per_missing_word": {"type": "number", "minimum": 0}
                }
              }
            }
          },
          "bonus": {
            "type": "object",
            "additionalProperties": {"type": "number"}
          }
        }
      }
    }
  }
}`

var rubricSchema = jsonschema.MustCompileString("rubric.schema.json", schemaJSON)

// Parse decodes a rubric JSON document after validating it against the schema.
func Parse(data []byte) (Rubric, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Rubric{}, fmt.Errorf("parse rubric json: %w", err)
	}
	if err := rubricSchema.Validate(doc); err != nil {
		return Rubric{}, fmt.Errorf("rubric schema: %w", err)
	}

	var r Rubric
	if err := json.Unmarshal(data, &r); err != nil {
		return Rubric{}, fmt.Errorf("decode rubric: %w", err)
	}
	return r, nil
}

// LoadFile reads and parses a rubric JSON document from disk.
func LoadFile(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("read rubric file: %w", err)
	}
	return Parse(data)
}
