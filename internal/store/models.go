package store

// Record is the provenance row for one indexed vector. Its ID equals the
// vector's position in the index; that shared id space is the only join
// between the two artifacts.
type Record struct {
	ID         int64
	SourcePath string
	ChunkIndex int
	Kind       string
	Text       string
	CharStart  int
	CharEnd    int
	// DocTS is the source document's modification time as a Unix
	// timestamp, used for date-range filtering at query time.
	DocTS int64
}

// SourceSummary is a per-document rollup for status reporting.
type SourceSummary struct {
	SourcePath string
	Kind       string
	Chunks     int
}
