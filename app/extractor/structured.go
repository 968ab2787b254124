package extractor

import (
	"regexp"
	"strings"
)

// structuredStrategy is the primary parse: it anchors on the profile's
// marker tokens (entry number, title delimiter pair, download/version
// token, author token) and treats everything between two entry markers as
// one block. Free-text commentary inside a block is tolerated because each
// field is located by its own token.
type structuredStrategy struct {
	profile    *Profile
	entryExpr  *regexp.Regexp
	titleExpr  *regexp.Regexp
	labelExpr  *regexp.Regexp
	authorExpr *regexp.Regexp
}

func newStructuredStrategy(profile *Profile) *structuredStrategy {
	m := profile.Markers
	return &structuredStrategy{
		profile:    profile,
		entryExpr:  regexp.MustCompile(regexp.QuoteMeta(m.EntryOpen) + `\s*(\d{1,4})\s*` + regexp.QuoteMeta(m.EntryClose)),
		titleExpr:  regexp.MustCompile(regexp.QuoteMeta(m.TitleOpen) + `([^` + regexp.QuoteMeta(m.TitleClose) + `]+)` + regexp.QuoteMeta(m.TitleClose)),
		labelExpr:  regexp.MustCompile(`[\[［(（]\s*[\d/\-年月日\.]{1,20}\s*[\]］)）]`),
		authorExpr: regexp.MustCompile(regexp.QuoteMeta(m.Author) + `\s*[:：]?\s*([^\r\n]+)`),
	}
}

func (s *structuredStrategy) Name() string { return "structured" }

func (s *structuredStrategy) Extract(text string) []WorkRecord {
	matches := s.entryExpr.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	records := make([]WorkRecord, 0, len(matches))
	for i, match := range matches {
		blockStart := match[1] // end of the entry marker
		blockEnd := len(text)
		if i+1 < len(matches) {
			blockEnd = matches[i+1][0]
		}
		block := text[blockStart:blockEnd]

		record := WorkRecord{
			BusinessKey: text[match[2]:match[3]],
		}

		if tm := s.titleExpr.FindStringSubmatch(block); tm != nil {
			record.Title = normalizeField(tm[1], maxTitleLen)
		}

		record.LastUpdateLabel = s.findUpdateLabel(block)

		if am := s.authorExpr.FindStringSubmatch(block); am != nil {
			record.Author = normalizeField(stripMarkup(am[1]), maxAuthorLen)
		}

		if plausibleTitle(record.Title, s.profile.Exclusions) {
			records = append(records, record)
		}
	}

	return records
}

// findUpdateLabel locates the bracketed version label, preferring the one
// that follows the download token so unrelated bracketed text earlier in
// the block does not win.
func (s *structuredStrategy) findUpdateLabel(block string) string {
	search := block
	if idx := strings.Index(block, s.profile.Markers.Download); idx >= 0 {
		search = block[idx:]
	}
	if lm := s.labelExpr.FindString(search); lm != "" {
		return normalizeField(lm, maxLabelLen)
	}
	return ""
}

var tagExpr = regexp.MustCompile(`<[^>]*>`)

func stripMarkup(s string) string {
	return tagExpr.ReplaceAllString(s, " ")
}
