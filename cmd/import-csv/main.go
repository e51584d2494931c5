package main

import (
	"context"
	"flag"
	"log"
	"time"

	"boardhub/internal/games"
	"boardhub/internal/pipeline"
	"boardhub/pkg/database"
	"boardhub/pkg/models"
	"boardhub/pkg/utils"
)

func main() {
	cfg := utils.LoadCrawlConfig()
	in := flag.String("in", cfg.OutPath, "dataset artifact path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	recs, err := pipeline.ReadArtifact(*in)
	if err != nil {
		log.Fatalf("read dataset failed: %v", err)
	}

	rows := make([]models.GameRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, models.RowFromExport(rec))
	}

	repo := games.NewRepo(db)
	if err := repo.ReplaceAll(ctx, rows); err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("imported %d games from %s", len(rows), *in)
}
