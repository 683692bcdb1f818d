package services

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/yungbote/soundweb-ingestor/internal/genremap"
	"github.com/yungbote/soundweb-ingestor/internal/platform/logger"
	"github.com/yungbote/soundweb-ingestor/internal/repos"
	"github.com/yungbote/soundweb-ingestor/internal/types"
)

// GenreExportService mirrors the reference genre table into the relational
// store so non-graph consumers can read colors and positions.
type GenreExportService interface {
	ExportGenreTable(ctx context.Context) (int, error)
}

type genreExportService struct {
	db        *gorm.DB
	log       *logger.Logger
	table     genremap.Table
	genreRepo repos.GenreRepo
}

func NewGenreExportService(db *gorm.DB, baseLog *logger.Logger, table genremap.Table, genreRepo repos.GenreRepo) GenreExportService {
	return &genreExportService{
		db:        db,
		log:       baseLog.With("service", "GenreExportService"),
		table:     table,
		genreRepo: genreRepo,
	}
}

func (s *genreExportService) ExportGenreTable(ctx context.Context) (int, error) {
	names := make([]string, 0, len(s.table))
	for name := range s.table {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]*types.Genre, 0, len(names))
	for _, name := range names {
		entry := s.table[name]
		rows = append(rows, &types.Genre{
			Name:  name,
			X:     entry.X,
			Y:     entry.Y,
			Color: entry.Color,
			Count: entry.Count,
		})
	}

	if err := s.genreRepo.ReplaceAll(ctx, s.db, rows); err != nil {
		return 0, err
	}
	s.log.Info("Exported genre table", "genres", len(rows))
	return len(rows), nil
}
