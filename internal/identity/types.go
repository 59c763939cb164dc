// Package identity holds the domain types shared by the extractor, the
// identity store, the matcher and the HTTP layer.
package identity

import "time"

// Embedding is a fixed-length face feature vector.
type Embedding []float32

// Clone returns an independent copy of the embedding.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Dim returns the embedding dimension.
func (e Embedding) Dim() int {
	return len(e)
}

// Record is one enrolled face.
type Record struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Embedding Embedding `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of the record that shares no memory with r.
func (r Record) Clone() Record {
	r.Embedding = r.Embedding.Clone()
	return r
}

// Match is the outcome of a matcher query. When Matched is false the
// remaining fields are zero.
type Match struct {
	Matched    bool
	ID         int64
	Name       string
	Confidence float64 // 0..1, higher is a closer match
	Distance   float64
}

// NoMatch is the absent match result.
var NoMatch = Match{}
