package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"boardhub/internal/ledger"
	"boardhub/internal/pipeline"
	"boardhub/internal/sources"
	"boardhub/pkg/database"
	"boardhub/pkg/models"
	"boardhub/pkg/utils"
)

func main() {
	cfg := utils.LoadCrawlConfig()

	var (
		source   = flag.String("source", "all", "which origin to crawl: bgg|mirror|all")
		category = flag.String("category", "", "crawl only this category name (bgg)")
		limit    = flag.Int("limit", 0, "maximum records per source, 0 = no cap")
		qps      = flag.Int("qps", cfg.QPS, "max outgoing requests per second")
		resume   = flag.Bool("resume", false, "replay the prior artifact before fetching")
		out      = flag.String("out", cfg.OutPath, "dataset artifact path")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	led, err := ledger.Open(db)
	if err != nil {
		log.Fatalf("ledger open failed: %v", err)
	}
	log.Printf("[crawler] ledger loaded: %d known keys", led.Len())

	var raws []models.RawRecord

	// -resume: rows from a surviving prior run count as the earliest
	// observations, so a fresh fetch of the same game overrides them.
	if *resume {
		prior, err := pipeline.ReadArtifact(*out)
		switch {
		case err == nil:
			for _, rec := range prior {
				raws = append(raws, rawFromExport(rec))
			}
			log.Printf("[crawler] resumed %d records from %s", len(prior), *out)
		case os.IsNotExist(err):
			log.Printf("[crawler] no prior artifact at %s, starting fresh", *out)
		default:
			log.Fatalf("resume read failed: %v", err)
		}
	}

	srcs, err := buildSources(cfg, *source, *category, *limit, *qps)
	if err != nil {
		log.Fatalf("%v", err)
	}
	raws = append(raws, sources.FetchAll(ctx, srcs...)...)

	runner := &pipeline.Runner{Ledger: led, OutPath: *out}
	res, err := runner.Run(raws)
	if err != nil {
		log.Fatalf("pipeline run failed: %v", err)
	}

	if err := pipeline.RecordRun(db, res); err != nil {
		log.Printf("[crawler] record run failed: %v", err)
	}

	log.Printf("[crawler] done: %d records exported to %s (new ids: %d)", res.Exported, *out, res.NewIDs)
}

func buildSources(cfg utils.CrawlConfig, which, category string, limit, qps int) ([]sources.Source, error) {
	var srcs []sources.Source

	switch strings.ToLower(which) {
	case "bgg":
		srcs = append(srcs, newBGG(cfg, category, limit, qps))
	case "mirror":
		srcs = append(srcs, sources.NewMirror(cfg.MirrorBaseURL))
	case "all":
		srcs = append(srcs, newBGG(cfg, category, limit, qps))
		srcs = append(srcs, sources.NewMirror(cfg.MirrorBaseURL))
	default:
		return nil, &flagError{"-source must be bgg, mirror, or all"}
	}
	return srcs, nil
}

func newBGG(cfg utils.CrawlConfig, category string, limit, qps int) *sources.BGG {
	src := sources.NewBGG(cfg.BGGBaseURL, cfg.BGGAPIBaseURL, qps)
	src.Category = category
	src.Limit = limit
	return src
}

type flagError struct{ msg string }

func (e *flagError) Error() string { return e.msg }

// rawFromExport turns an exported record back into an observation so a
// resumed run flows through the same normalization as a fresh fetch.
func rawFromExport(rec models.ExportRecord) models.RawRecord {
	return models.RawRecord{
		Source:      rec.Source,
		SourceID:    rec.SourceID,
		Name:        rec.Name,
		Year:        intToken(rec.Year),
		Category:    rec.Category,
		URL:         rec.URL,
		ImageURL:    rec.ImageURL,
		PlayersMin:  intToken(rec.PlayersMin),
		PlayersMax:  intToken(rec.PlayersMax),
		TimeMin:     intToken(rec.TimeMin),
		TimeMax:     intToken(rec.TimeMax),
		AgePlus:     intToken(rec.AgePlus),
		Weight:      floatToken(rec.Weight),
		Rating:      floatToken(rec.Rating),
		Description: rec.Description,

		GalleryImages:  rec.GalleryImages,
		AlternateNames: rec.AlternateNames,
		Designers:      rec.Designers,
		Artists:        rec.Artists,
		Publishers:     rec.Publishers,
	}
}

func intToken(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatToken(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
