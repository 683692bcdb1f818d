package services

import (
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
)

// TagReconciler merges pipeline-proposed tags with the user-assigned tags the
// store already holds. Every policy reads the current set first and produces
// the full resulting set; writes replace, never append, so the store stays
// authoritative after each operation.
type TagReconciler struct {
	log *logger.Logger
}

func NewTagReconciler(baseLog *logger.Logger) *TagReconciler {
	return &TagReconciler{log: baseLog.With("component", "TagReconciler")}
}

// MergeBulk is the top-artist resynchronization policy: the union of stored
// and newly computed tags, stored-first order. A bulk run never removes a
// user's tag.
func (t *TagReconciler) MergeBulk(stored, computed []string) []string {
	merged := make([]string, 0, len(stored)+len(computed))
	seen := make(map[string]bool, len(stored)+len(computed))
	for _, tag := range stored {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	for _, tag := range computed {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	return merged
}

// AddCustom is the single-artist policy: add the explicit tag only when
// absent. The second return reports whether the set changed.
func (t *TagReconciler) AddCustom(stored []string, tag string) ([]string, bool) {
	if tag == "" {
		return stored, false
	}
	for _, existing := range stored {
		if existing == tag {
			t.log.Debug("Tag already present, leaving set unchanged", "tag", tag)
			return stored, false
		}
	}
	out := make([]string, 0, len(stored)+1)
	out = append(out, stored...)
	out = append(out, tag)
	return out, true
}

// RemoveCustom removes an explicit tag. Removing an absent tag is a no-op,
// reported via the second return rather than an error.
func (t *TagReconciler) RemoveCustom(stored []string, tag string) ([]string, bool) {
	out := make([]string, 0, len(stored))
	removed := false
	for _, existing := range stored {
		if existing == tag {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if !removed {
		t.log.Debug("Tag not present, nothing to remove", "tag", tag)
	}
	return out, removed
}
