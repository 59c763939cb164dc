package database

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kozaktomas/face-id/internal/identity"
)

// EncodeEmbedding packs an embedding as little-endian float32 values.
func EncodeEmbedding(e identity.Embedding) []byte {
	buf := make([]byte, 4*len(e))
	for i, v := range e {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(b []byte) (identity.Embedding, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	e := make(identity.Embedding, len(b)/4)
	for i := range e {
		e[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return e, nil
}
