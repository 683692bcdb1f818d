package types

// SourceRecord is the shape every source client produces: one record per
// artist, scoped to a single ingestion run, immutable once the client returns
// it. Field names line up with the checkpoint JSON written between stages.
type SourceRecord struct {
	Name         string   `json:"name"`
	ExternalID   string   `json:"externalId,omitempty"`
	URL          string   `json:"url,omitempty"`
	GenreTags    []string `json:"genreTags,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	Popularity   *int     `json:"popularity,omitempty"`
	RelatedNames []string `json:"relatedNames,omitempty"`
}

// ArtistNode is the canonical merged artist. The graph store, not this
// struct, is the durable representation; an ArtistNode lives for one run.
// JSON tags double as the Neo4j property names.
type ArtistNode struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Popularity     int      `json:"popularity"`
	SpotifyID      string   `json:"spotifyId,omitempty"`
	SpotifyURL     string   `json:"spotifyUrl,omitempty"`
	LastfmMBID     string   `json:"lastfmMBID,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	Genres         []string `json:"genres"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	Color          string   `json:"color,omitempty"`
	UserTags       []string `json:"userTags,omitempty"`
	RelatedArtists []string `json:"relatedArtists,omitempty"`
	Rank           *int     `json:"rank,omitempty"`
	LastUpdated    string   `json:"lastUpdated,omitempty"`
}
