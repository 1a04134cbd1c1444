package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/pkg/syncclient"
)

// docSummary is the condensed view of a dashboard printed by pull and status.
type docSummary struct {
	Present   bool       `json:"present"`
	Version   string     `json:"version,omitempty"`
	Phases    int        `json:"phases"`
	Tasks     int        `json:"tasks"`
	Logs      int        `json:"logs"`
	SizeBytes int        `json:"sizeBytes"`
	LastLog   *time.Time `json:"lastLog,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
}

func summarize(doc *document.Document) docSummary {
	if doc == nil {
		return docSummary{}
	}

	s := docSummary{
		Present:   true,
		Version:   doc.Version,
		Phases:    len(doc.Phases),
		Logs:      len(doc.Logs),
		SizeBytes: document.Size(doc),
	}

	for i := range doc.Phases {
		s.Tasks += len(doc.Phases[i].Tasks)
	}

	if n := len(doc.Logs); n > 0 {
		t := doc.Logs[n-1].Timestamp
		s.LastLog = &t
	}

	return s
}

func printSummary(w io.Writer, s docSummary) {
	if !s.Present {
		fmt.Fprintln(w, "No dashboard data.")
		return
	}

	fmt.Fprintf(w, "Version:  %s\n", s.Version)
	fmt.Fprintf(w, "Phases:   %d (%d tasks)\n", s.Phases, s.Tasks)
	fmt.Fprintf(w, "Log:      %d entries\n", s.Logs)
	fmt.Fprintf(w, "Size:     %s\n", formatSize(int64(s.SizeBytes)))

	if s.LastLog != nil {
		fmt.Fprintf(w, "Last log: %s\n", formatAge(*s.LastLog, time.Now()))
	}
}

// disposeTimeout bounds how long a command waits for its last backup.
const disposeTimeout = 30 * time.Second

// disposeClient releases client and folds any dispose error into *errp.
// Dispose runs even when ctx is already cancelled so a pending draft is
// still flushed, but never waits longer than disposeTimeout.
func disposeClient(ctx context.Context, client *syncclient.Client, errp *error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disposeTimeout)
	defer cancel()

	*errp = errors.Join(*errp, client.Dispose(ctx))
}
