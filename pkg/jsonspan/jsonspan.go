// Package jsonspan locates a JSON object embedded in free-form model output.
//
// The span runs from the first '{' to the last '}' in the text. Nested
// objects inside the outer object are kept intact; a stray '}' in trailing
// commentary widens the span and makes the result unparseable.
package jsonspan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoObject     = errors.New("no JSON object found")
	ErrInvalidShape = errors.New("located span is not a JSON object")
)

// Locate returns the substring between the first '{' and the last '}'.
func Locate(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoObject
	}
	return text[start : end+1], nil
}

// Decode locates the object in text and unmarshals it into v.
func Decode(text string, v any) error {
	span, err := Locate(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	return nil
}

// Object decodes the located span into a generic mapping.
func Object(text string) (map[string]any, error) {
	var out map[string]any
	if err := Decode(text, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrInvalidShape
	}
	return out, nil
}
