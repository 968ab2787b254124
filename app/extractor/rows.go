package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ordinalCellExpr = regexp.MustCompile(`^\s*(?:No\.?|#)?\s*(\d{1,4})\s*$`)
	dateishExpr     = regexp.MustCompile(`\d{1,2}\s*/\s*\d{1,2}|\d{4}年|\d{4}[-/]\d{1,2}`)
)

// rowStrategy is the first fallback: it parses the document as HTML and
// scans table rows and list items for a numeric ordinal next to field
// cells. It guarantees key and title; author and update label are
// recovered only when a cell looks like one.
type rowStrategy struct {
	profile *Profile
}

func newRowStrategy(profile *Profile) *rowStrategy {
	return &rowStrategy{profile: profile}
}

func (s *rowStrategy) Name() string { return "row" }

func (s *rowStrategy) Extract(text string) []WorkRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}

	var records []WorkRecord
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeField(cell.Text(), maxTitleLen))
		})
		if record, ok := s.recordFromCells(cells); ok {
			records = append(records, record)
		}
	})

	if len(records) > 0 {
		return records
	}

	// Some listing revisions used <li> rows instead of a table.
	doc.Find("li").Each(func(_ int, item *goquery.Selection) {
		cells := strings.FieldsFunc(normalizeField(item.Text(), maxTitleLen*2), func(r rune) bool {
			return r == '|' || r == '｜'
		})
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if record, ok := s.recordFromCells(cells); ok {
			records = append(records, record)
		}
	})

	return records
}

func (s *rowStrategy) recordFromCells(cells []string) (WorkRecord, bool) {
	var record WorkRecord

	keyIdx := -1
	for i, cell := range cells {
		if m := ordinalCellExpr.FindStringSubmatch(cell); m != nil {
			record.BusinessKey = m[1]
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return record, false
	}

	for _, cell := range cells[keyIdx+1:] {
		switch {
		case cell == "":
		case record.Title == "" && plausibleTitle(cell, s.profile.Exclusions) && !dateishExpr.MatchString(cell):
			record.Title = cell
		case record.LastUpdateLabel == "" && dateishExpr.MatchString(cell):
			record.LastUpdateLabel = normalizeField(cell, maxLabelLen)
		case record.Author == "" && record.Title != "":
			author := strings.TrimPrefix(cell, s.profile.Markers.Author)
			record.Author = normalizeField(strings.TrimLeft(author, ":： "), maxAuthorLen)
		}
	}

	if record.Title == "" {
		return record, false
	}
	return record, true
}
