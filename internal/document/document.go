// Package document defines the synchronized dashboard document: an ordered
// list of workflow phases plus an append-only activity log. It also owns
// the helpers every writer goes through (cloning, content comparison,
// version stamping, log trimming, identity minting) so the Local Store, the
// Merge Resolver and the Sync Engine agree on one notion of "content".
package document

import (
	"bytes"
	"encoding/json"
	"time"
)

// Document is the unit of synchronization.
type Document struct {
	Phases  []Phase    `json:"phases"`
	Logs    []LogEntry `json:"logs"`
	Version string     `json:"version,omitempty"`
}

// Phase is one stage of the project workflow. ID is minted by the creating
// client and must be unique within a Document.
type Phase struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Task is a unit of work inside a Phase.
type Task struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Checklist   []ChecklistItem   `json:"checklist"`
	Performance PerformanceRecord `json:"performance"`
	Issues      string            `json:"issues,omitempty"`
}

// ChecklistItem is a single checkbox line on a Task.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// PerformanceRecord captures when and how a Task was carried out.
type PerformanceRecord struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Link      string `json:"link,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// LogEntry is one line of the Document's activity log. Version records the
// document version the entry was written against.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Version   string    `json:"version,omitempty"`
}

// Equal reports whether two log entries are structurally identical.
func (e LogEntry) Equal(o LogEntry) bool {
	return e.Timestamp.Equal(o.Timestamp) && e.Message == o.Message && e.Version == o.Version
}

// Clone returns a deep copy of d. A nil Document clones to nil.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	out := &Document{Version: d.Version}

	if d.Phases != nil {
		out.Phases = make([]Phase, len(d.Phases))
		for i := range d.Phases {
			out.Phases[i] = d.Phases[i].Clone()
		}
	}

	if d.Logs != nil {
		out.Logs = make([]LogEntry, len(d.Logs))
		copy(out.Logs, d.Logs)
	}

	return out
}

// Clone returns a deep copy of p.
func (p Phase) Clone() Phase {
	out := p
	if p.Tasks != nil {
		out.Tasks = make([]Task, len(p.Tasks))
		for i := range p.Tasks {
			out.Tasks[i] = p.Tasks[i].Clone()
		}
	}

	return out
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	out := t
	if t.Checklist != nil {
		out.Checklist = make([]ChecklistItem, len(t.Checklist))
		copy(out.Checklist, t.Checklist)
	}

	return out
}

// Marshal serializes d to its wire/storage JSON form.
func Marshal(d *Document) ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal parses a serialized Document.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}

	return &d, nil
}

// Size returns the serialized size of d in bytes. Marshal failures report
// zero; Document contains only plain data so this does not happen in practice.
func Size(d *Document) int {
	data, err := Marshal(d)
	if err != nil {
		return 0
	}

	return len(data)
}

// contentBytes serializes d with its version cleared, so two snapshots with
// identical content but different stamps produce identical bytes.
func contentBytes(d *Document) []byte {
	if d == nil {
		return nil
	}

	stripped := *d
	stripped.Version = ""

	data, err := json.Marshal(&stripped)
	if err != nil {
		return nil
	}

	return data
}

// ContentEqual reports whether a and b carry the same phases and logs,
// ignoring their version stamps.
func ContentEqual(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}

	return bytes.Equal(contentBytes(a), contentBytes(b))
}

// FindPhase returns the index of the phase with the given id, or -1.
func (d *Document) FindPhase(id string) int {
	for i := range d.Phases {
		if d.Phases[i].ID == id {
			return i
		}
	}

	return -1
}
