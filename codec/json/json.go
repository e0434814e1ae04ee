// Package json is the default codec.Codec, using encoding/json.
package json

import (
	"encoding/json"

	"github.com/loqor/objectstore/codec"
)

// Codec marshals primitives with encoding/json.
type Codec struct{}

// New returns the default JSON codec.
func New() Codec { return Codec{} }

func (Codec) Marshal(v codec.Primitive) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v *codec.Primitive) error {
	return json.Unmarshal(data, v)
}

var _ codec.Codec = Codec{}
