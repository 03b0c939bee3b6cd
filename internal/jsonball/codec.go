// Package jsonball converts group configuration blobs between their textual
// form and a string-keyed map of undecoded JSON values.
package jsonball

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Config is a decoded group configuration. Values stay raw so any JSON
// document survives a decode/encode round trip untouched.
type Config map[string]json.RawMessage

// Codec is the serializer contract used by the synthesizer.
type Codec interface {
	Decode(text string) (Config, error)
	Encode(v json.RawMessage) (string, error)
}

// JSON is the default Codec.
type JSON struct{}

var errTrailingData = errors.New("trailing data after JSON object")

// Decode parses text as a single JSON object.
func (JSON) Decode(text string) (Config, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.New("config must be a JSON object, got null")
	}
	if _, err := dec.Token(); err == nil {
		return nil, errTrailingData
	}
	return cfg, nil
}

// Encode returns the compact, single-line text of v.
func (JSON) Encode(v json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OptionValue renders a scalar JSON value as plain option text: strings
// lose their quotes, numbers and booleans keep their literal form.
func OptionValue(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", errors.New("value is null")
	default:
		return "", fmt.Errorf("value must be a scalar, got %T", v)
	}
}
