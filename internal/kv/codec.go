package kv

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Codec converts between a Go value and its stored bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// CodecFuncs adapts a pair of functions to Codec.
type CodecFuncs[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (c CodecFuncs[T]) Encode(v T) ([]byte, error)    { return c.EncodeFunc(v) }
func (c CodecFuncs[T]) Decode(data []byte) (T, error) { return c.DecodeFunc(data) }

// StringCodec stores string-kinded values as raw UTF-8.
type StringCodec[T ~string] struct{}

func (StringCodec[T]) Encode(v T) ([]byte, error)    { return []byte(v), nil }
func (StringCodec[T]) Decode(data []byte) (T, error) { return T(data), nil }

// BytesCodec stores byte slices unchanged.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error)    { return v, nil }
func (BytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// JSONCodec stores values as JSON.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

// BinaryCodec stores values through their encoding.BinaryMarshaler
// implementation. PT is the pointer type that implements BinaryUnmarshaler.
type BinaryCodec[T encoding.BinaryMarshaler, PT interface {
	*T
	encoding.BinaryUnmarshaler
}] struct{}

func (BinaryCodec[T, PT]) Encode(v T) ([]byte, error) { return v.MarshalBinary() }

func (BinaryCodec[T, PT]) Decode(data []byte) (T, error) {
	var v T
	if err := PT(&v).UnmarshalBinary(data); err != nil {
		return v, err
	}
	return v, nil
}
