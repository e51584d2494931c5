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
	out := flag.String("out", cfg.OutPath, "output CSV path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	repo := games.NewRepo(db)
	rows, err := repo.All(ctx)
	if err != nil {
		log.Fatalf("read games failed: %v", err)
	}

	recs := make([]models.ExportRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, models.ExportFromRow(row))
	}

	if err := pipeline.WriteArtifact(*out, recs); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	log.Printf("exported %d games to %s", len(recs), *out)
}
