package document

import (
	"fmt"
	"time"

	"github.com/tonimelisma/dashsync/pkg/rollhash"
)

// GenerateVersion returns a fresh version tag for d of the form
// v{epochMillis}-{hash}. The hash covers the serialized content with the
// version field cleared. Tags are opaque: they detect change, they do not
// order snapshots.
func GenerateVersion(d *Document, now time.Time) string {
	return fmt.Sprintf("v%d-%s", now.UnixMilli(), ContentFingerprint(d))
}

// ContentFingerprint returns the base-36 rolling hash of d's content.
func ContentFingerprint(d *Document) string {
	h := rollhash.New()
	_, _ = h.Write(contentBytes(d))

	return rollhash.Base36(int32(h.Sum32())) //nolint:gosec // signed reinterpretation matches the tag format
}

// Stamp sets d.Version to a fresh tag and returns it.
func Stamp(d *Document, now time.Time) string {
	d.Version = GenerateVersion(d, now)

	return d.Version
}
