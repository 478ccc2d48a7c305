// Package db provides shared helpers for bulk upserts and pgvector values.
package db

import (
	"fmt"
	"strings"
)

// VectorLiteral renders a vector in pgvector's text format, e.g.
// "[0.1,0.2,0.3]".
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}
