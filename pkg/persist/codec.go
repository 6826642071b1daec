package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Codec converts values to and from their plaintext on-disk form.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Codec names accepted by CodecByName.
const (
	CodecJSON = "json"
	CodecYAML = "yaml"
)

// JSONCodec writes indented JSON. It is the default codec.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return CodecJSON }

// Marshal implements Codec.
func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal implements Codec. Unknown fields and anything after the first
// value are rejected so that a damaged file or one written for another type
// is not silently accepted.
func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return nil
}

// YAMLCodec writes YAML documents.
type YAMLCodec struct{}

// Name implements Codec.
func (YAMLCodec) Name() string { return CodecYAML }

// Marshal implements Codec.
func (YAMLCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (YAMLCodec) Unmarshal(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// CodecByName returns the codec registered under name. An empty name selects
// JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecYAML, "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (supported: json, yaml)", name)
	}
}
