package domain

// Candidate is a Passage with the raw signal scores attached during retrieval.
// It lives only for the duration of one query.
type Candidate struct {
	Passage

	// Lexical is the raw full-text rank score (valid when HasLexical).
	Lexical float64
	// Distance is the raw vector distance, smaller is better (valid when HasSemantic).
	Distance float64

	HasLexical  bool
	HasSemantic bool
}

// ScoredCandidate is a Candidate after normalization and fusion.
type ScoredCandidate struct {
	Candidate

	// LexNorm and SemNorm are the z-scored signal values. A missing signal
	// normalizes to zero, the list average.
	LexNorm float64
	SemNorm float64
	// Fused is the convex combination of the normalized signals.
	Fused float64
}

// RankedResult is the externally visible output unit. All intermediate signal
// scores are retained for observability.
type RankedResult struct {
	ScoredCandidate

	// Rerank is the pairwise relevance score. Scale is model-defined; higher
	// is more relevant.
	Rerank float64
}
