package detector

import (
	"time"

	"contestwatch/app/database"
	"contestwatch/app/extractor"
)

// Detect classifies freshly extracted records against the current catalog
// into new, updated and unchanged, joined on the business key. It is a
// pure function of its inputs: no I/O, no mutation, and identical inputs
// always produce an identical ChangeSet. The caller supplies the instant
// stamped on the result.
func Detect(records []extractor.WorkRecord, catalog []database.Work, at time.Time) *ChangeSet {
	index := make(map[string]database.Work, len(catalog))
	for _, work := range catalog {
		index[work.BusinessKey] = work
	}

	changeSet := &ChangeSet{Timestamp: at.UTC()}

	for _, record := range records {
		// A record without a business key cannot be matched or merged safely.
		if record.BusinessKey == "" {
			continue
		}

		existing, ok := index[record.BusinessKey]
		if !ok {
			changeSet.New = append(changeSet.New, record)
			continue
		}

		changes := classify(record, existing)
		if len(changes) == 0 {
			changeSet.Unchanged = append(changeSet.Unchanged, record)
			continue
		}

		changeSet.Updated = append(changeSet.Updated, UpdatedWork{
			Record:      record,
			Previous:    existing,
			ChangeTypes: changes,
		})
	}

	return changeSet
}

func classify(record extractor.WorkRecord, existing database.Work) []string {
	var changes []string

	if record.Title != "" && record.Title != existing.Title {
		changes = append(changes, ChangeTitle)
	}

	// A fallback strategy may not recover the author; an empty candidate
	// field is missing data, not a change.
	if record.Author != "" && record.Author != existing.Author {
		changes = append(changes, ChangeAuthor)
	}

	if record.UpdateTimestamp != nil {
		switch {
		case existing.UpdateTimestamp == nil:
			// The stored side has no parseable timestamp: favor surfacing
			// a possible update over silently dropping it.
			changes = append(changes, ChangeUpdated)
		case !record.UpdateTimestamp.Equal(*existing.UpdateTimestamp):
			changes = append(changes, ChangeUpdated)
		}
	}

	return changes
}
