package document

import (
	"encoding/json"
	"time"

	"golang.org/x/text/unicode/norm"
)

// minLogEntries is the floor below which trimming never goes, so even an
// oversized document keeps its recent history.
const minLogEntries = 100

// AppendLog appends a log entry stamped with now and the document's current
// version. The message is normalized to NFC.
func AppendLog(d *Document, message string, now time.Time) LogEntry {
	entry := LogEntry{
		Timestamp: now.UTC(),
		Message:   norm.NFC.String(message),
		Version:   d.Version,
	}

	d.Logs = append(d.Logs, entry)

	return entry
}

// TrimLog drops the oldest log entries until the serialized document is at
// most maxBytes or only minLogEntries remain. Returns the number of entries
// removed. maxBytes <= 0 disables trimming.
func TrimLog(d *Document, maxBytes int) int {
	if maxBytes <= 0 {
		return 0
	}

	total := Size(d)
	if total <= maxBytes {
		return 0
	}

	drop := 0
	for total > maxBytes && len(d.Logs)-drop > minLogEntries {
		entry, err := json.Marshal(d.Logs[drop])
		if err != nil {
			break
		}

		// +1 for the separating comma.
		total -= len(entry) + 1
		drop++
	}

	if drop == 0 {
		return 0
	}

	d.Logs = append([]LogEntry(nil), d.Logs[drop:]...)

	return drop
}
