package sdk

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Matches reports whether an end user with the given traits is in the audience of target.
// An absent, null or empty target matches everyone. Otherwise every target key must be present
// in traits with an equal JSON value; an array target value matches any one of its elements.
func Matches(target, traits json.RawMessage) bool {
	trimmed := bytes.TrimSpace(target)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var want map[string]any
	if err := json.Unmarshal(trimmed, &want); err != nil {
		return false
	}
	if len(want) == 0 {
		return true
	}
	var have map[string]any
	if len(bytes.TrimSpace(traits)) > 0 {
		if err := json.Unmarshal(traits, &have); err != nil {
			return false
		}
	}
	for key, expected := range want {
		actual, ok := have[key]
		if !ok {
			return false
		}
		if !valueMatches(expected, actual) {
			return false
		}
	}
	return true
}

func valueMatches(expected, actual any) bool {
	options, ok := expected.([]any)
	if !ok {
		return reflect.DeepEqual(expected, actual)
	}
	for _, opt := range options {
		if reflect.DeepEqual(opt, actual) {
			return true
		}
	}
	return false
}
