package document

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	return &Document{
		Phases: []Phase{
			{
				ID:    "p1",
				Title: "Planning",
				Tasks: []Task{
					{
						ID:        "t1",
						Title:     "Survey site",
						Checklist: []ChecklistItem{{ID: "c1", Text: "book van", Completed: true}},
						Performance: PerformanceRecord{
							StartDate: "2026-01-05",
							EndDate:   "2026-01-06",
						},
					},
				},
			},
		},
		Logs: []LogEntry{
			{Timestamp: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), Message: "created"},
		},
	}
}

var versionPattern = regexp.MustCompile(`^v\d+-[0-9a-z]+$`)

func TestGenerateVersion_Format(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1767600000123)
	v := GenerateVersion(sampleDoc(), now)

	assert.Regexp(t, versionPattern, v)
	assert.True(t, strings.HasPrefix(v, "v1767600000123-"), "version %q should embed epoch millis", v)
}

func TestGenerateVersion_IgnoresExistingVersion(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1000)
	a := sampleDoc()
	b := sampleDoc()
	b.Version = "v1-old"

	assert.Equal(t, GenerateVersion(a, now), GenerateVersion(b, now))
}

func TestGenerateVersion_ContentChangesHash(t *testing.T) {
	t.Parallel()

	a := sampleDoc()
	b := sampleDoc()
	b.Phases[0].Title = "Execution"

	assert.NotEqual(t, ContentFingerprint(a), ContentFingerprint(b))
}

func TestGenerateVersion_NilDocument(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		v := GenerateVersion(nil, time.UnixMilli(5))
		assert.Equal(t, "v5-0", v)
	})
}

func TestStamp(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	v := Stamp(d, time.UnixMilli(42))

	assert.Equal(t, v, d.Version)
	assert.True(t, strings.HasPrefix(v, "v42-"))
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	orig := sampleDoc()
	cp := orig.Clone()

	cp.Phases[0].Title = "changed"
	cp.Phases[0].Tasks[0].Checklist[0].Completed = false
	cp.Logs[0].Message = "changed"

	assert.Equal(t, "Planning", orig.Phases[0].Title)
	assert.True(t, orig.Phases[0].Tasks[0].Checklist[0].Completed)
	assert.Equal(t, "created", orig.Logs[0].Message)

	var nilDoc *Document
	assert.Nil(t, nilDoc.Clone())
}

func TestContentEqual(t *testing.T) {
	t.Parallel()

	a := sampleDoc()
	b := sampleDoc()
	a.Version = "v1-a"
	b.Version = "v2-b"

	assert.True(t, ContentEqual(a, b))

	b.Logs = append(b.Logs, LogEntry{Message: "more"})
	assert.False(t, ContentEqual(a, b))

	assert.True(t, ContentEqual(nil, nil))
	assert.False(t, ContentEqual(a, nil))
}

func TestMarshalRoundTripKeepsWireNames(t *testing.T) {
	t.Parallel()

	data, err := Marshal(sampleDoc())
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"phases"`)
	assert.Contains(t, s, `"logs"`)
	assert.Contains(t, s, `"startDate":"2026-01-05"`)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, ContentEqual(sampleDoc(), back))
}

func TestUnmarshal_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal([]byte(`{"phases": [`))
	assert.Error(t, err)
}

func TestAppendLog_NormalizesAndStamps(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	d.Version = "v9-abc"
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	// "e" + combining acute accent composes to a single code point.
	entry := AppendLog(d, "Cafe\u0301 opened", now)

	assert.Equal(t, "Caf\u00e9 opened", entry.Message)
	assert.Equal(t, "v9-abc", entry.Version)
	assert.Equal(t, time.UTC, entry.Timestamp.Location())
	assert.Len(t, d.Logs, 2)
}

func TestTrimLog_DropsOldestUntilFits(t *testing.T) {
	t.Parallel()

	d := &Document{Phases: []Phase{}}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 300 {
		AppendLog(d, fmt.Sprintf("entry %03d %s", i, strings.Repeat("x", 100)), base.Add(time.Duration(i)*time.Second))
	}

	limit := Size(d) / 2
	removed := TrimLog(d, limit)

	require.Positive(t, removed)
	assert.LessOrEqual(t, Size(d), limit)
	assert.Len(t, d.Logs, 300-removed)
	assert.True(t, strings.HasPrefix(d.Logs[0].Message, fmt.Sprintf("entry %03d", removed)))
}

func TestTrimLog_KeepsFloor(t *testing.T) {
	t.Parallel()

	d := &Document{}
	for i := range 150 {
		AppendLog(d, fmt.Sprintf("entry %d", i), time.Unix(int64(i), 0))
	}

	removed := TrimLog(d, 10)

	assert.Equal(t, 50, removed)
	assert.Len(t, d.Logs, minLogEntries)
}

func TestTrimLog_UnderLimitOrDisabled(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	assert.Zero(t, TrimLog(d, 1<<20))
	assert.Zero(t, TrimLog(d, 0))
	assert.Len(t, d.Logs, 1)
}

func TestFindPhase(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	assert.Equal(t, 0, d.FindPhase("p1"))
	assert.Equal(t, -1, d.FindPhase("missing"))
}
