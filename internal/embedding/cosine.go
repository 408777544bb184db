// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package embedding

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero-magnitude vectors score 0.0; the result is
// never NaN or Inf. Accumulation happens in float64 so the self-similarity
// of a stored float32 vector stays within 1e-6 of 1.0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
