package extractor

import (
	"regexp"
	"strings"
)

var lineEntryExpr = regexp.MustCompile(`^\s*(?:【|No\.?|#)?(\d{1,4})(?:】)?[\s.．:：、)）>-]+(.+)$`)

// lineStrategy is the last resort: scan individual lines for a leading
// ordinal followed by non-trivial text. Only key and title are recovered.
type lineStrategy struct {
	profile *Profile
}

func newLineStrategy(profile *Profile) *lineStrategy {
	return &lineStrategy{profile: profile}
}

func (s *lineStrategy) Name() string { return "line" }

func (s *lineStrategy) Extract(text string) []WorkRecord {
	var records []WorkRecord

	for _, line := range strings.Split(text, "\n") {
		line = normalizeField(stripMarkup(line), maxTitleLen*2)
		m := lineEntryExpr.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		title := normalizeField(m[2], maxTitleLen)
		if !plausibleTitle(title, s.profile.Exclusions) {
			continue
		}

		records = append(records, WorkRecord{
			BusinessKey: m[1],
			Title:       title,
		})
	}

	return records
}
