package detector

import (
	"time"

	"contestwatch/app/database"
	"contestwatch/app/extractor"
)

// Change type tags attached to updated works.
const (
	ChangeTitle   = "title"
	ChangeAuthor  = "author"
	ChangeUpdated = "updated"
)

// UpdatedWork pairs a freshly extracted record with the catalog entry it
// supersedes and the list of fields that differ.
type UpdatedWork struct {
	Record      extractor.WorkRecord
	Previous    database.Work
	ChangeTypes []string
}

// ChangeSet is the classified result of comparing one extraction run
// against the catalog. It lives for a single run.
type ChangeSet struct {
	New       []extractor.WorkRecord
	Updated   []UpdatedWork
	Unchanged []extractor.WorkRecord
	Timestamp time.Time
}

// Empty reports whether the change-set carries no new or updated works.
func (cs *ChangeSet) Empty() bool {
	return len(cs.New) == 0 && len(cs.Updated) == 0
}
