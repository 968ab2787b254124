package extractor

import (
	"time"
)

// WorkRecord is one listing entry extracted from the source document.
// Records live for a single run: they are folded into the catalog or a
// change-set and then discarded.
type WorkRecord struct {
	BusinessKey     string     // entry's public number, kept as string to preserve leading characters
	Title           string
	Author          string
	LastUpdateLabel string     // raw update/version label as it appeared in the document
	UpdateTimestamp *time.Time // best-effort parse of LastUpdateLabel, nil when unparseable
	SourceURL       string
	ExtractedAt     time.Time
}

// Result is the outcome of running the strategy cascade over one document.
type Result struct {
	Success      bool
	Records      []WorkRecord
	StrategyUsed string
	Diagnostics  *Diagnostics
}

// Diagnostics describes why extraction produced zero records, with enough
// structure to tell "source changed shape" from "transient garbage response"
// without reading the raw payload.
type Diagnostics struct {
	Blocks            int            // occurrences of the entry-number marker
	Rows              int            // table rows found in the document
	Lines             int            // non-empty text lines
	MarkerHits        map[string]int // occurrence count per expected marker token
	EncodingArtifacts int            // suspected mis-decoded characters
}

// Strategy is one parsing approach. Strategies are pure: they read the
// document text and return candidate records, without I/O or shared state.
type Strategy interface {
	Name() string
	Extract(text string) []WorkRecord
}
