package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/soundweb-ingestor/internal/clients/lastfm"
	"github.com/yungbote/soundweb-ingestor/internal/clients/musicbrainz"
	"github.com/yungbote/soundweb-ingestor/internal/clients/redis"
	"github.com/yungbote/soundweb-ingestor/internal/clients/spotify"
	"github.com/yungbote/soundweb-ingestor/internal/data/graph"
	"github.com/yungbote/soundweb-ingestor/internal/db"
	"github.com/yungbote/soundweb-ingestor/internal/genre"
	"github.com/yungbote/soundweb-ingestor/internal/genremap"
	"github.com/yungbote/soundweb-ingestor/internal/handlers"
	"github.com/yungbote/soundweb-ingestor/internal/merge"
	"github.com/yungbote/soundweb-ingestor/internal/platform/envutil"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/platform/neo4jdb"
	"github.com/yungbote/soundweb-ingestor/internal/repos"
	"github.com/yungbote/soundweb-ingestor/internal/server"
	"github.com/yungbote/soundweb-ingestor/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Genre reference table
	log.Info("Loading genre reference table from main...")
	genreMapPath := envutil.GetEnv("GENRE_MAP_PATH", "genre_map.json", log)
	genreTable, err := genremap.Load(genreMapPath)
	if err != nil {
		log.Fatal("Could not load genre reference table", "error", err)
	}
	log.Info("Loaded genre reference table", "genres", len(genreTable))

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Neo4j
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Fatal("Neo4j init failed", "error", err)
	}
	defer neo4jClient.Close(ctx)

	// Repos
	log.Info("Setting up Repos from main...")
	genreRepo := repos.NewGenreRepo(thePG, log)
	incompleteArtistRepo := repos.NewIncompleteArtistRepo(thePG, log)
	syncRunRepo := repos.NewSyncRunRepo(thePG, log)

	// Source clients
	log.Info("Setting up source clients from main...")
	lastfmClient, err := lastfm.NewClient(log)
	if err != nil {
		log.Fatal("Could not init Last.fm client", "error", err)
	}
	spotifyClient, err := spotify.NewClient(log)
	if err != nil {
		log.Fatal("Could not init Spotify client", "error", err)
	}
	musicbrainzClient, err := musicbrainz.NewClient(log)
	if err != nil {
		log.Fatal("Could not init MusicBrainz client", "error", err)
	}

	// Checkpoints are optional; without Redis every run fetches fresh.
	checkpoints, err := redis.NewCheckpointStore(log)
	if err != nil {
		log.Warn("Checkpoint store init failed, running without resume", "error", err)
		checkpoints = nil
	}
	if checkpoints != nil {
		defer checkpoints.Close()
	}

	// Graph store
	artistGraph := graph.NewArtistGraph(neo4jClient, log)
	artistGraph.EnsureSchema(ctx)

	// Services
	log.Info("Setting up Services from main...")
	resolver := genre.NewResolver(genreTable)
	merger := merge.NewMerger(log, resolver)
	tagReconciler := services.NewTagReconciler(log)
	syncService := services.NewGraphSyncService(log, artistGraph, tagReconciler)
	genreExportService := services.NewGenreExportService(thePG, log, genreTable, genreRepo)
	pipelineService := services.NewIngestPipelineService(
		log,
		lastfmClient,
		spotifyClient,
		musicbrainzClient,
		resolver,
		merger,
		syncService,
		checkpoints,
		syncRunRepo,
		incompleteArtistRepo,
	)

	if _, err := genreExportService.ExportGenreTable(ctx); err != nil {
		log.Warn("Genre table export failed", "error", err)
	}

	pipelineService.StartWorker(ctx)

	// Handlers + Router
	ingestHandler := handlers.NewIngestHandler(log, pipelineService, syncService)
	router := server.NewRouter(server.RouterConfig{
		IngestHandler: ingestHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	log.Info("Starting HTTP server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
