package extractor

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Engine runs the strategy cascade over one document. Strategies are tried
// in fixed priority order; the first one yielding at least one plausible
// record wins and later strategies are not run. The engine is a pure
// function of the document text: it performs no I/O and keeps no state
// between runs.
type Engine struct {
	profile    *Profile
	sourceURL  string
	strategies []Strategy
	now        func() time.Time
}

func NewEngine(profile *Profile, sourceURL string) *Engine {
	return &Engine{
		profile:   profile,
		sourceURL: sourceURL,
		strategies: []Strategy{
			newStructuredStrategy(profile),
			newRowStrategy(profile),
			newLineStrategy(profile),
		},
		now: time.Now,
	}
}

func (e *Engine) Run(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	extractedAt := e.now()

	for _, strategy := range e.strategies {
		records := strategy.Extract(text)
		if len(records) == 0 {
			continue
		}

		for i := range records {
			records[i].SourceURL = e.sourceURL
			records[i].ExtractedAt = extractedAt
			if records[i].LastUpdateLabel != "" {
				records[i].UpdateTimestamp = ParseUpdateLabel(records[i].LastUpdateLabel, extractedAt)
			}
		}

		slog.Debug("Extraction succeeded", "strategy", strategy.Name(), "records", len(records))
		return Result{
			Success:      true,
			Records:      records,
			StrategyUsed: strategy.Name(),
		}
	}

	diag := e.diagnose(text)
	slog.Warn("All extraction strategies failed",
		"blocks", diag.Blocks, "rows", diag.Rows, "lines", diag.Lines,
		"encoding_artifacts", diag.EncodingArtifacts)
	return Result{
		Success:     false,
		Diagnostics: diag,
	}
}

// diagnose summarizes document structure after a total extraction failure:
// which expected marker tokens are present, how many sub-structures exist,
// and how much of the text looks mis-decoded.
func (e *Engine) diagnose(text string) *Diagnostics {
	m := e.profile.Markers
	markerHits := map[string]int{
		"entry":    strings.Count(text, m.EntryOpen),
		"title":    strings.Count(text, m.TitleOpen),
		"download": strings.Count(text, m.Download),
		"author":   strings.Count(text, m.Author),
	}

	lines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}

	artifacts := strings.Count(text, string(utf8.RuneError))
	artifacts += strings.Count(text, "\x00")

	return &Diagnostics{
		Blocks:            markerHits["entry"],
		Rows:              strings.Count(strings.ToLower(text), "<tr"),
		Lines:             lines,
		MarkerHits:        markerHits,
		EncodingArtifacts: artifacts,
	}
}
