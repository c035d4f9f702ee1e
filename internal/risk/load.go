package risk

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRulesFile is returned when a rules file does not match the schema.
var ErrInvalidRulesFile = errors.New("invalid rules file")

// RulesFile is the on-disk shape of a custom rules pack.
type RulesFile struct {
	Rules  []Rule   `yaml:"rules"`
	Ignore []string `yaml:"ignore"`
}

const rulesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["pattern", "category"],
        "properties": {
          "pattern":  {"type": "string", "minLength": 1},
          "category": {"type": "string", "minLength": 1},
          "severity": {"type": "string", "enum": ["high", "medium", "low"]},
          "message":  {"type": "string"}
        }
      }
    },
    "ignore": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

// LoadRulesFile loads a YAML or JSON rules pack. Returns nil and nil error if
// path is empty. Rules come back normalised (missing severity = medium).
func LoadRulesFile(path string) (*RulesFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules validates and decodes a rules pack.
func ParseRules(data []byte) (*RulesFile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if doc == nil {
		return &RulesFile{}, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validating rules file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidRulesFile, strings.Join(msgs, "; "))
	}

	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decoding rules file: %w", err)
	}
	for i := range rf.Rules {
		rf.Rules[i] = rf.Rules[i].Normalize()
	}
	return &rf, nil
}
