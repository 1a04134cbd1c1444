package document

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// clientPrefixLen is how many characters of the session id are kept in
// minted identities.
const clientPrefixLen = 8

// ClientPrefix derives the identity prefix for a client from its session
// id. Ids minted by different clients therefore never share a prefix unless
// their session ids do.
func ClientPrefix(sessionID string) string {
	p := strings.TrimPrefix(sessionID, "sess-")
	p = strings.ReplaceAll(p, "-", "")

	if len(p) > clientPrefixLen {
		p = p[:clientPrefixLen]
	}

	if p == "" {
		return "local"
	}

	return p
}

// NewID mints a client-prefixed identity: {prefix}-{uuidv7}.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return prefix + "-" + id.String()
}

// NewPhase returns an empty phase with a freshly minted id.
func NewPhase(prefix, title string) Phase {
	return Phase{
		ID:    NewID(prefix),
		Title: norm.NFC.String(title),
		Tasks: []Task{},
	}
}

// NewTask returns an empty task with a freshly minted id.
func NewTask(prefix, title string) Task {
	return Task{
		ID:        NewID(prefix),
		Title:     norm.NFC.String(title),
		Checklist: []ChecklistItem{},
	}
}

// NewChecklistItem returns an unchecked checklist line.
func NewChecklistItem(prefix, text string) ChecklistItem {
	return ChecklistItem{
		ID:   NewID(prefix),
		Text: norm.NFC.String(text),
	}
}
