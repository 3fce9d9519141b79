package session

import (
	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/matcher"
	"github.com/Nomadcxx/jellyrename/internal/naming"
)

// Status is the lifecycle state of one file in a batch.
type Status int

const (
	Pending Status = iota
	Matched
	Unmatched
	Skipped
	Renamed
	Failed
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Matched:   "matched",
	Unmatched: "unmatched",
	Skipped:   "skipped",
	Renamed:   "renamed",
	Failed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the entry has finished its batch.
func (s Status) Terminal() bool {
	return s == Unmatched || s == Skipped || s == Renamed || s == Failed
}

// Entry is one file in the active batch.
type Entry struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	// Path is where the file is now.
	Path   string         `json:"path"`
	Hint   naming.Hint    `json:"-"`
	Status Status         `json:"status"`
	Match  *matcher.Match `json:"-"`
	Target string         `json:"target,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Show returns the resolved show, if any.
func (e Entry) Show() *catalog.Show {
	if e.Match == nil {
		return nil
	}
	return e.Match.Show
}

// Confidence returns the match confidence, None when unresolved.
func (e Entry) Confidence() matcher.Confidence {
	if e.Match == nil {
		return matcher.None
	}
	return e.Match.Confidence
}

// Request asks the caller to pick one show for every entry that searched
// for Query.
type Request struct {
	Query      string         `json:"query"`
	Candidates []catalog.Show `json:"candidates"`
	EntryIDs   []int          `json:"entry_ids"`
	// Suggested is the candidate whose year matches the file names, 0 if
	// none stands out. Nothing is chosen on its strength.
	Suggested int `json:"suggested,omitempty"`
}
