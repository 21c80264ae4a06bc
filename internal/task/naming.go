package task

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskexport/internal/domain"
)

// artifactExt is the extension of every export artifact.
const artifactExt = ".csv"

// dateLayout is the ISO-8601 calendar date used in object keys.
const dateLayout = "2006-01-02"

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", "..", "_", "\x00", "_")

// sanitize makes an identifier usable as a single path segment.
func sanitize(id string) string {
	return unsafeChars.Replace(strings.TrimSpace(id))
}

// SinkName returns the local file name for one attempt of t:
// <workspaceId>_<taskId>_<stepId>.csv.
func SinkName(t domain.Task, stepID uuid.UUID) string {
	return sanitize(t.PlaygroundID) + "_" + sanitize(t.ID) + "_" + stepID.String() + artifactExt
}

// SinkPath joins SinkName onto dir.
func SinkPath(dir string, t domain.Task, stepID uuid.UUID) string {
	return filepath.Join(dir, SinkName(t, stepID))
}

// ObjectKey returns the storage key for one attempt of t:
// <prefix>/<YYYY-MM-DD>/<workspaceId>/<taskId>_<stepId>.csv, dated in UTC.
func ObjectKey(prefix string, now time.Time, t domain.Task, stepID uuid.UUID) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	return path.Join(
		prefix,
		now.UTC().Format(dateLayout),
		sanitize(t.PlaygroundID),
		sanitize(t.ID)+"_"+stepID.String()+artifactExt,
	)
}
