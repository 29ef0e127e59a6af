package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"socialsync-be/internal/bootstrap"
	"socialsync-be/internal/config"
	"socialsync-be/internal/entity"
	"socialsync-be/internal/repository/specification"
	"socialsync-be/internal/repository/unitofwork"
	"socialsync-be/pkg/database"
	"socialsync-be/pkg/embedding"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/search"

	"github.com/google/uuid"
)

// seed embeds every listing under EVENTS_DIR into event_embeddings, one file at a time.
// Re-running replaces the rows of each file and only embeds listings it has not seen.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	defer database.Close(db)

	ctx := context.Background()
	embeddingProvider, err := bootstrap.NewEmbeddingProvider(ctx, cfg.Ai)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	uowFactory := unitofwork.NewRepositoryFactory(db)

	files, err := filepath.Glob(filepath.Join(cfg.Retrieval.EventsDir, "*.txt"))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	sort.Strings(files)
	log.Printf("Seeding %d listing files from %s...", len(files), cfg.Retrieval.EventsDir)

	total := 0
	for _, f := range files {
		stats, err := seedFile(ctx, f, embeddingProvider, uowFactory)
		if err != nil {
			log.Fatalf("Error: seeding %s: %v", f, err)
		}
		log.Printf("  %s: %d listings (%d embedded, %d reused, %d indexed by another file)",
			filepath.Base(f), stats.indexed, stats.embedded, stats.reused, stats.shared)
		total += stats.indexed
	}
	log.Printf("Success: %d listings embedded.", total)
}

func seedFile(ctx context.Context, path string, provider embedding.EmbeddingProvider, uowFactory unitofwork.RepositoryFactory) (seedStats, error) {
	var stats seedStats
	content, err := os.ReadFile(path)
	if err != nil {
		return stats, err
	}
	source := filepath.Base(path)

	var blobs []string
	var fingerprints []string
	seen := make(map[string]bool)
	for _, blob := range search.SplitBlobs(string(content)) {
		fp := record.Fingerprint(blob)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		blobs = append(blobs, blob)
		fingerprints = append(fingerprints, fp)
	}

	uow := uowFactory.NewUnitOfWork(ctx)
	repo := uow.EventEmbeddingRepository()

	// listings already indexed keep their vectors; the same listing in another file stays there
	stored := make(map[string]*entity.EventEmbedding)
	if len(fingerprints) > 0 {
		existing, err := repo.FindAll(ctx, specification.ByFingerprints{Fingerprints: fingerprints})
		if err != nil {
			return stats, err
		}
		for _, e := range existing {
			stored[e.Fingerprint] = e
		}
	}

	var rows []*entity.EventEmbedding
	for i, blob := range blobs {
		fp := fingerprints[i]
		row := &entity.EventEmbedding{
			Id:          uuid.New(),
			Document:    blob,
			Fingerprint: fp,
			Source:      source,
			CreatedAt:   time.Now(),
		}
		if prev, ok := stored[fp]; ok {
			if prev.Source != source {
				stats.shared++
				continue
			}
			row.EmbeddingValue = prev.EmbeddingValue
			stats.reused++
		} else {
			res, err := provider.Generate(ctx, blob, embedding.TaskRetrievalDocument)
			if err != nil {
				return stats, fmt.Errorf("embed listing: %w", err)
			}
			row.EmbeddingValue = res.Embedding.Values
			stats.embedded++
		}
		rows = append(rows, row)
	}

	if err := uow.Begin(ctx); err != nil {
		return stats, err
	}
	defer uow.Rollback()

	if err := uow.EventEmbeddingRepository().DeleteBySource(ctx, source); err != nil {
		return stats, err
	}
	if len(rows) > 0 {
		if err := uow.EventEmbeddingRepository().CreateBulk(ctx, rows); err != nil {
			return stats, err
		}
	}
	if err := uow.Commit(); err != nil {
		return stats, err
	}

	indexed, err := uow.EventEmbeddingRepository().Count(ctx, specification.BySource{Source: source})
	if err != nil {
		return stats, err
	}
	stats.indexed = int(indexed)
	return stats, nil
}

type seedStats struct {
	indexed  int
	embedded int
	reused   int
	shared   int
}
