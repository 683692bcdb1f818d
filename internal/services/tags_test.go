package services

import (
	"reflect"
	"testing"

	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
)

func newTestReconciler(t *testing.T) *TagReconciler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewTagReconciler(log)
}

func TestMergeBulkUnionNeverRemoves(t *testing.T) {
	r := newTestReconciler(t)

	got := r.MergeBulk([]string{"user-a", "user-b"}, []string{"user-b", "run-tag"})
	want := []string{"user-a", "user-b", "run-tag"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// computed empty: stored set survives untouched
	got = r.MergeBulk([]string{"user-a"}, nil)
	if !reflect.DeepEqual(got, []string{"user-a"}) {
		t.Fatalf("expected stored tags to survive, got %v", got)
	}
}

func TestMergeBulkEmptyStored(t *testing.T) {
	r := newTestReconciler(t)
	got := r.MergeBulk(nil, []string{"a", "a", ""})
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected deduplicated computed set, got %v", got)
	}
}

func TestAddCustomIdempotent(t *testing.T) {
	r := newTestReconciler(t)

	got, changed := r.AddCustom([]string{"fav"}, "fav")
	if changed {
		t.Fatalf("adding a present tag must not change the set")
	}
	if !reflect.DeepEqual(got, []string{"fav"}) {
		t.Fatalf("set mutated: %v", got)
	}

	got, changed = r.AddCustom([]string{"fav"}, "new")
	if !changed || !reflect.DeepEqual(got, []string{"fav", "new"}) {
		t.Fatalf("expected [fav new], got %v (changed=%v)", got, changed)
	}
}

func TestRemoveCustomNoOpWhenAbsent(t *testing.T) {
	r := newTestReconciler(t)

	got, removed := r.RemoveCustom([]string{"fav"}, "other")
	if removed {
		t.Fatalf("removing an absent tag must report a no-op")
	}
	if !reflect.DeepEqual(got, []string{"fav"}) {
		t.Fatalf("set mutated: %v", got)
	}

	got, removed = r.RemoveCustom([]string{"fav", "other"}, "other")
	if !removed || !reflect.DeepEqual(got, []string{"fav"}) {
		t.Fatalf("expected [fav], got %v (removed=%v)", got, removed)
	}
}
