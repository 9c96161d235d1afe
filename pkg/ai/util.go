package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// GenerateSchema reflects a JSON Schema for the given Go type, suitable for
// structured output requests. Additional properties are forbidden and the
// schema is inlined rather than using $ref pointers, which some providers
// reject.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflector.Reflect(reflect.New(t).Interface())
}

// UnmarshalFlexible parses model output that is supposed to be JSON but often
// is not quite. The attempts, in order: parse as-is, unwrap a double-encoded
// JSON string, then repair the payload and parse once more.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if json.Unmarshal([]byte(input), out) == nil {
		return nil
	}

	var wrapped string
	if json.Unmarshal([]byte(input), &wrapped) == nil {
		wrapped = strings.TrimSpace(wrapped)
		if json.Unmarshal([]byte(wrapped), out) == nil {
			return nil
		}
		input = wrapped
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: input=%s repaired=%s", input, repaired)
	}
	return nil
}

// Some models emit "{{" at the start of an object. Drop the outer brace so
// the repair pass sees a single object.
func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}
