package client

import (
	"fmt"
	"strings"
)

// validateAgainstMinimalSchema checks the parts of a tool input schema that
// matter before a call goes out: required keys and, when
// additionalProperties is false, unknown keys. Type checks stay with the host.
func validateAgainstMinimalSchema(input, schema map[string]any) error {
	requiredKeys := extractStringSlice(schema["required"])
	for _, key := range requiredKeys {
		if _, ok := input[key]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidArguments, key)
		}
	}

	allowAdditional := true
	switch v := schema["additionalProperties"].(type) {
	case bool:
		allowAdditional = v
	case map[string]any:
		// {"not": {}} is how schema generators spell false.
		if _, ok := v["not"]; ok && len(v) == 1 {
			allowAdditional = false
		}
	}

	allowedProps := map[string]struct{}{}
	if props, ok := schema["properties"].(map[string]any); ok {
		for key := range props {
			allowedProps[key] = struct{}{}
		}
	}

	if !allowAdditional {
		for key := range input {
			if _, ok := allowedProps[key]; !ok {
				return fmt.Errorf("%w: unknown field %q", ErrInvalidArguments, key)
			}
		}
	}

	return nil
}

func extractStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
