package db

// KNNQuery asks for the K nearest documents to Vector.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
	// ReturnFields projects the reply; empty returns every stored field.
	ReturnFields []string
	// RawScores reports the cosine distance as is; otherwise Score is 1 - distance.
	RawScores bool
}

// SearchResult lists hits ordered by ascending distance.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
