// Seeds the "Enchanted Kingdom" three-chapter demo story and prints the
// overview counts after each chapter.
//
// Usage: go run ./backend/cmd/seed -project enchanted-kingdom -reset
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/internal/graph"
	"storygraph/backend/internal/story"
	"storygraph/backend/pkg/config"
	"storygraph/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	project := flag.String("project", "enchanted-kingdom", "Project namespace to seed")
	reset := flag.Bool("reset", false, "Clear the project before seeding")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Seeding demo story", zap.String("project", *project))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver)

	if *reset {
		if err := repo.Clear(ctx, *project); err != nil {
			log.Fatal("Failed to clear project", zap.Error(err))
		}
		log.Info("Project cleared", zap.String("project", *project))
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	for _, analysis := range story.EnchantedKingdomChapters(*project) {
		syncCtx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
		result := repo.SyncChapter(syncCtx, analysis)
		cancel()

		if !result.Success {
			log.Fatal("Chapter sync failed",
				zap.Int("chapter", analysis.ChapterNumber),
				zap.String("message", result.Message),
			)
		}

		overview, err := repo.GetOverview(ctx, *project)
		if err != nil {
			log.Fatal("Failed to fetch overview", zap.Error(err))
		}

		log.Info("Chapter seeded",
			zap.Int("chapter", analysis.ChapterNumber),
			zap.Int("characters", overview.NodesByType[story.LabelCharacter]),
			zap.Int("locations", overview.NodesByType[story.LabelLocation]),
			zap.Int("objects", overview.NodesByType[story.LabelObject]),
			zap.Int("events", overview.NodesByType[story.LabelEvent]),
			zap.Int("plot_threads", overview.NodesByType[story.LabelPlotThread]),
			zap.Int("edges", len(overview.Edges)),
		)
	}

	nc, err := repo.GetCurrentContext(ctx, *project)
	if err != nil {
		log.Fatal("Failed to fetch narrative context", zap.Error(err))
	}

	log.Info("Demo story seeded",
		zap.Int("latest_chapter", nc.ChapterNumber),
		zap.Strings("active_characters", nc.ActiveCharacters),
		zap.Strings("open_plot_threads", nc.OpenPlotThreads),
		zap.String("mood", nc.Mood),
		zap.String("tension", nc.Tension),
	)
}
