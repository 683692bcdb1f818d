package services

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/yungbote/soundweb-ingestor/internal/normalize"
	"github.com/yungbote/soundweb-ingestor/internal/pkg/apperr"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

type fakeNode struct {
	artist    types.ArtistNode
	userTags  []string
	topArtist bool
}

// fakeGraph is an in-memory stand-in for the Neo4j store, mirroring its
// label, tag and undirected-edge semantics.
type fakeGraph struct {
	nodes    map[string]*fakeNode
	edges    map[[2]string]bool
	metadata map[string]string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes:    map[string]*fakeNode{},
		edges:    map[[2]string]bool{},
		metadata: map[string]string{},
	}
}

func (f *fakeGraph) TopArtistIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	for id, n := range f.nodes {
		if n.topArtist {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeGraph) UserTags(ctx context.Context, id string) ([]string, error) {
	n, ok := f.nodes[id]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, n.userTags...), nil
}

func (f *fakeGraph) SetUserTags(ctx context.Context, spotifyID string, tags []string) error {
	for _, n := range f.nodes {
		if n.artist.SpotifyID == spotifyID {
			n.userTags = append([]string{}, tags...)
		}
	}
	return nil
}

func (f *fakeGraph) RemoveTopArtistLabel(ctx context.Context, id string) error {
	if n, ok := f.nodes[id]; ok {
		n.topArtist = false
	}
	return nil
}

func (f *fakeGraph) DeleteArtist(ctx context.Context, id string) error {
	delete(f.nodes, id)
	for pair := range f.edges {
		if pair[0] == id || pair[1] == id {
			delete(f.edges, pair)
		}
	}
	return nil
}

func (f *fakeGraph) DeleteTopArtistRelationships(ctx context.Context) error {
	for pair := range f.edges {
		a, aok := f.nodes[pair[0]]
		b, bok := f.nodes[pair[1]]
		if aok && bok && a.topArtist && b.topArtist {
			delete(f.edges, pair)
		}
	}
	return nil
}

func (f *fakeGraph) UpsertArtist(ctx context.Context, artist *types.ArtistNode, topArtist bool) error {
	existing, ok := f.nodes[artist.ID]
	node := &fakeNode{artist: *artist, userTags: append([]string{}, artist.UserTags...)}
	// MERGE + conditional SET never removes a label the node already has.
	node.topArtist = topArtist || (ok && existing.topArtist)
	f.nodes[artist.ID] = node
	return nil
}

func (f *fakeGraph) CreateRelatedLink(ctx context.Context, id1, id2 string) error {
	pair := [2]string{id1, id2}
	sort.Strings(pair[:])
	f.edges[pair] = true
	return nil
}

func (f *fakeGraph) ArtistIDByNormalizedName(ctx context.Context, key string) (string, error) {
	for id, n := range f.nodes {
		if normalize.Name(n.artist.Name) == key {
			return id, nil
		}
	}
	return "", nil
}

func (f *fakeGraph) ArtistBySpotifyID(ctx context.Context, spotifyID string) (map[string]any, []string, bool, bool, error) {
	for _, n := range f.nodes {
		if n.artist.SpotifyID == spotifyID {
			return map[string]any{"id": n.artist.ID, "name": n.artist.Name},
				append([]string{}, n.userTags...), n.topArtist, true, nil
		}
	}
	return nil, nil, false, false, nil
}

func (f *fakeGraph) UpdateMetadata(ctx context.Context, name, timestamp string) error {
	f.metadata[name] = timestamp
	return nil
}

// snapshot captures the state the idempotence guarantee covers: node count,
// labels, properties, tags and edges. lastUpdated is stamped per run and is
// deliberately excluded.
func (f *fakeGraph) snapshot() map[string]any {
	nodes := map[string]any{}
	for id, n := range f.nodes {
		a := n.artist
		a.LastUpdated = ""
		nodes[id] = struct {
			Artist types.ArtistNode
			Tags   []string
			Top    bool
		}{a, append([]string{}, n.userTags...), n.topArtist}
	}
	edges := map[[2]string]bool{}
	for pair := range f.edges {
		edges[pair] = true
	}
	return map[string]any{"nodes": nodes, "edges": edges}
}

func newTestSyncer(t *testing.T, store ArtistGraphStore) GraphSyncService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewGraphSyncService(log, store, NewTagReconciler(log))
}

func artist(id, name string, related ...string) *types.ArtistNode {
	rank := 1
	return &types.ArtistNode{
		ID:             id,
		Name:           name,
		SpotifyID:      id,
		Genres:         []string{"rock"},
		Color:          "#f00",
		UserTags:       []string{},
		RelatedArtists: related,
		Rank:           &rank,
	}
}

func TestSyncTopArtistsIdempotent(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	artists := []*types.ArtistNode{
		artist("a1", "Alpha", "Bravo"),
		artist("a2", "Bravo", "Alpha"),
		artist("a3", "Charlie"),
	}

	first, err := syncer.SyncTopArtists(ctx, artists)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Upserted != 3 || first.LinksCreated != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	before := store.snapshot()

	second, err := syncer.SyncTopArtists(ctx, artists)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Demoted != 0 || second.Reclaimed != 0 {
		t.Fatalf("second sync must not demote or reclaim: %+v", second)
	}
	if !reflect.DeepEqual(before, store.snapshot()) {
		t.Fatalf("store state changed on identical re-sync")
	}
}

func TestSyncDemotesTaggedStaleArtist(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	old := artist("old", "Old Favorite")
	old.UserTags = []string{"my-tag"}
	if _, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{old}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	if _, ok := store.nodes["old"]; !ok || !store.nodes["old"].topArtist {
		t.Fatalf("seed node missing or unlabeled")
	}

	res, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("new", "Newcomer")})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Demoted != 1 || res.Reclaimed != 0 {
		t.Fatalf("expected one demotion, got %+v", res)
	}
	n, ok := store.nodes["old"]
	if !ok {
		t.Fatalf("demoted node must survive")
	}
	if n.topArtist {
		t.Fatalf("demoted node must lose TopArtist label")
	}
	if !reflect.DeepEqual(n.userTags, []string{"my-tag"}) {
		t.Fatalf("demoted node must keep tags, got %v", n.userTags)
	}
	if n.artist.Name != "Old Favorite" {
		t.Fatalf("demoted node must keep properties")
	}
}

func TestSyncReclaimsUntaggedStaleArtist(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	stale := []*types.ArtistNode{
		artist("a1", "Alpha", "Bravo"),
		artist("a2", "Bravo", "Alpha"),
	}
	if _, err := syncer.SyncTopArtists(ctx, stale); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	if len(store.edges) != 1 {
		t.Fatalf("expected one seeded edge, got %d", len(store.edges))
	}

	res, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a2", "Bravo")})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Reclaimed != 1 {
		t.Fatalf("expected one reclamation, got %+v", res)
	}
	if _, ok := store.nodes["a1"]; ok {
		t.Fatalf("reclaimed node must be deleted")
	}
	if len(store.edges) != 0 {
		t.Fatalf("reclaimed node's edges must be deleted, got %v", store.edges)
	}
}

func TestSyncEdgeDeduplication(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	artists := []*types.ArtistNode{
		artist("a1", "Alpha", "Bravo", "Bravo", "Alpha"),
		artist("a2", "Bravo", "Alpha"),
	}
	res, err := syncer.SyncTopArtists(ctx, artists)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	// self references skipped, both directions and repeats collapse to one
	if res.LinksCreated != 1 || len(store.edges) != 1 {
		t.Fatalf("expected exactly one edge, got %d (created %d)", len(store.edges), res.LinksCreated)
	}
}

func TestSyncResolvesRelatedOutsideRunFromStore(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	// A user-curated node that is not part of the incoming snapshot.
	curated := artist("c1", "Curated One")
	if err := syncer.SyncCustomArtist(ctx, curated, "fav"); err != nil {
		t.Fatalf("custom sync: %v", err)
	}

	res, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a1", "Alpha", "Curated One")})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.LinksCreated != 1 {
		t.Fatalf("expected link to stored node, got %+v", res)
	}
	if !store.edges[[2]string{"a1", "c1"}] {
		t.Fatalf("expected a1-c1 edge, got %v", store.edges)
	}
}

func TestSyncMergesStoredTagsOnUpsert(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	seeded := artist("a1", "Alpha")
	seeded.UserTags = []string{"kept"}
	if _, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{seeded}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	if _, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a1", "Alpha")}); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !reflect.DeepEqual(store.nodes["a1"].userTags, []string{"kept"}) {
		t.Fatalf("bulk sync must never drop stored tags, got %v", store.nodes["a1"].userTags)
	}
}

func TestSyncCustomArtistDoesNotLabelOrDemote(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	if err := syncer.SyncCustomArtist(ctx, artist("c1", "Curated"), "fav"); err != nil {
		t.Fatalf("custom sync: %v", err)
	}
	n := store.nodes["c1"]
	if n == nil {
		t.Fatalf("custom node missing")
	}
	if n.topArtist {
		t.Fatalf("custom sync must not apply TopArtist label")
	}
	if !reflect.DeepEqual(n.userTags, []string{"fav"}) {
		t.Fatalf("expected [fav], got %v", n.userTags)
	}
	if n.artist.Rank != nil {
		t.Fatalf("custom artists carry no rank")
	}

	// Re-adding the same tag stays idempotent.
	if err := syncer.SyncCustomArtist(ctx, artist("c1", "Curated"), "fav"); err != nil {
		t.Fatalf("repeat custom sync: %v", err)
	}
	if !reflect.DeepEqual(store.nodes["c1"].userTags, []string{"fav"}) {
		t.Fatalf("expected [fav], got %v", store.nodes["c1"].userTags)
	}
}

func TestSyncCustomKeepsExistingTopArtistLabel(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	if _, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a1", "Alpha")}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	if err := syncer.SyncCustomArtist(ctx, artist("a1", "Alpha"), "fav"); err != nil {
		t.Fatalf("custom sync: %v", err)
	}
	if !store.nodes["a1"].topArtist {
		t.Fatalf("custom sync must not strip an existing TopArtist label")
	}
}

func TestRemoveCustomTag(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	if err := syncer.SyncCustomArtist(ctx, artist("c1", "Curated"), "fav"); err != nil {
		t.Fatalf("custom sync: %v", err)
	}

	removed, err := syncer.RemoveCustomTag(ctx, "c1", "absent")
	if err != nil {
		t.Fatalf("remove absent tag: %v", err)
	}
	if removed {
		t.Fatalf("removing an absent tag must be a no-op")
	}

	removed, err = syncer.RemoveCustomTag(ctx, "c1", "fav")
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	if len(store.nodes["c1"].userTags) != 0 {
		t.Fatalf("expected empty tag set, got %v", store.nodes["c1"].userTags)
	}

	if _, err := syncer.RemoveCustomTag(ctx, "ghost", "fav"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown artist, got %v", err)
	}
}

func TestSyncAbortsOnStoreError(t *testing.T) {
	store := newFakeGraph()
	failing := &failingGraph{fakeGraph: store, failOnUpsertID: "a2"}
	syncer := newTestSyncer(t, failing)
	ctx := context.Background()

	artists := []*types.ArtistNode{
		artist("a1", "Alpha"),
		artist("a2", "Bravo"),
		artist("a3", "Charlie"),
	}
	res, err := syncer.SyncTopArtists(ctx, artists)
	if err == nil {
		t.Fatalf("expected store error to propagate")
	}
	if res.Upserted != 1 {
		t.Fatalf("expected one artist synced before the abort, got %d", res.Upserted)
	}
	if _, ok := store.nodes["a3"]; ok {
		t.Fatalf("artists after the failure must not be processed")
	}
	last := res.Outcomes[len(res.Outcomes)-1]
	if last.ID != "a2" || last.Status != ArtistOutcomeFailed {
		t.Fatalf("expected failed outcome for a2, got %+v", last)
	}
}

// A failed tag read during the stale sweep must abort the run. Treating it
// as "no tags" would classify a tagged node as reclaimable and delete it.
func TestStaleSweepAbortsWhenTagLookupFails(t *testing.T) {
	store := newFakeGraph()
	syncer := newTestSyncer(t, store)
	ctx := context.Background()

	if _, err := syncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a1", "Alpha")}); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	store.nodes["a1"].userTags = []string{"keeper"}

	failing := &failingGraph{fakeGraph: store, failOnUserTagsID: "a1"}
	failingSyncer := newTestSyncer(t, failing)

	_, err := failingSyncer.SyncTopArtists(ctx, []*types.ArtistNode{artist("a2", "Bravo")})
	if err == nil {
		t.Fatalf("expected tag lookup failure to propagate")
	}
	node, ok := store.nodes["a1"]
	if !ok {
		t.Fatalf("tagged node must survive a failed sweep")
	}
	if len(node.userTags) != 1 || node.userTags[0] != "keeper" {
		t.Fatalf("tags must be untouched, got %v", node.userTags)
	}
}

type failingGraph struct {
	*fakeGraph
	failOnUpsertID   string
	failOnUserTagsID string
}

func (f *failingGraph) UpsertArtist(ctx context.Context, a *types.ArtistNode, top bool) error {
	if a.ID == f.failOnUpsertID {
		return errors.New("store unavailable")
	}
	return f.fakeGraph.UpsertArtist(ctx, a, top)
}

func (f *failingGraph) UserTags(ctx context.Context, id string) ([]string, error) {
	if id == f.failOnUserTagsID {
		return nil, errors.New("store unavailable")
	}
	return f.fakeGraph.UserTags(ctx, id)
}
