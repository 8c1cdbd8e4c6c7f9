package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/database"
	"github.com/stemsi/proficiency-backend/internal/logger"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/repository"
	"github.com/stemsi/proficiency-backend/internal/service"
)

// seed-content fills empty content banks with the starter items. A bank
// that already has rows is left alone, so the command is safe to re-run.
func main() {
	var skipCache bool
	flag.BoolVar(&skipCache, "skip-cache", false, "Do not refresh the Redis pool cache after seeding")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "seed_content").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	repo := repository.NewContentRepository(pool)
	counts, err := repo.Counts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count content")
	}

	seeded := 0
	if counts.MCQ == 0 {
		seeded += seedMCQ(ctx, repo, log)
	}
	if counts.Writing == 0 {
		for _, topic := range writingBank {
			if err := repo.CreateWritingTopic(ctx, &model.WritingTopic{Topic: topic}); err != nil {
				log.Fatal().Err(err).Str("topic", topic).Msg("Failed to seed writing topic")
			}
			seeded++
		}
	}
	if counts.Listening == 0 {
		for i := range listeningBank {
			if err := repo.CreateListeningScenario(ctx, &listeningBank[i]); err != nil {
				log.Fatal().Err(err).Str("topic", listeningBank[i].Topic).Msg("Failed to seed listening scenario")
			}
			seeded++
		}
	}
	if counts.Speaking == 0 {
		for _, prompts := range speakingBank {
			if err := repo.CreateSpeakingSet(ctx, &model.SpeakingSet{Prompts: prompts}); err != nil {
				log.Fatal().Err(err).Msg("Failed to seed speaking set")
			}
			seeded++
		}
	}

	log.Info().Int("rows", seeded).Msg("Content seeding complete")
	if seeded == 0 || skipCache {
		return
	}

	// Running servers keep serving the cached pools until refreshed.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, pool cache not refreshed")
		return
	}
	defer rdb.Close()

	content := service.NewContentService(repo, rdb, cfg.ContentCacheTTL, log)
	if err := content.WarmPoolCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Pool cache refresh failed")
	}
}

func seedMCQ(ctx context.Context, repo *repository.ContentRepository, log zerolog.Logger) int {
	n := 0
	for _, req := range mcqBank {
		item, err := service.NormalizeMCQ(req)
		if err != nil {
			log.Fatal().Err(err).Str("text", req.Text).Msg("Invalid starter MCQ")
		}
		if err := repo.CreateMCQ(ctx, item); err != nil {
			log.Fatal().Err(err).Str("text", req.Text).Msg("Failed to seed MCQ")
		}
		n++
	}
	return n
}
