package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/http/api"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/google/uuid"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete event test and returns the collected stats.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	cfg.normalize(stats.StartTime)
	log := logger.Get()

	token, err := bearerToken(cfg)
	if err != nil {
		return stats, err
	}
	client := newClient(cfg.BaseURL, token, cfg.Timeout)

	log.Info(ctx, "starting balendip event test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("workers", cfg.Workers),
		logger.Int("days", cfg.Days),
		logger.Any("seed", cfg.Seed),
		logger.String("userID", cfg.UserID))

	if err := client.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	spheres, err := client.seedSpheres(ctx)
	if err != nil {
		return stats, fmt.Errorf("seed spheres: %w", err)
	}
	ids := make([]string, len(spheres))
	for i, s := range spheres {
		ids[i] = s.ID
	}

	gen := newGenerator(cfg, ids)
	from, to := gen.dateRange()
	baseline, err := client.analytics(ctx, from, to)
	if err != nil {
		return stats, fmt.Errorf("baseline analytics: %w", err)
	}

	inputs := gen.events(cfg.NumEvents)
	stats.EventsGenerated = len(inputs)
	created := submitEvents(ctx, cfg, client, inputs, stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("event submission interrupted: %w", err)
	}

	after, err := client.analytics(ctx, from, to)
	if err != nil {
		return stats, fmt.Errorf("analytics: %w", err)
	}
	listed, err := walkListing(ctx, client, from, to, cfg.PageSize, stats)
	if err != nil {
		return stats, err
	}
	if err := verifyResults(ctx, baseline, after, created, listed); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveEvents(cfg.OutputFile, created); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		} else {
			log.Info(ctx, "events saved to file", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// bearerToken picks the token to send. Minting needs a user id, so a fresh
// one is generated when none is configured.
func bearerToken(cfg *Config) (string, error) {
	if cfg.Token != "" || cfg.Secret == "" {
		return cfg.Token, nil
	}
	if cfg.UserID == "" {
		cfg.UserID = "loadtest-" + uuid.NewString()
	}
	tok, err := api.NewAuthenticator(cfg.Secret, "").Issue(cfg.UserID, tokenTTL)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return tok, nil
}

// saveEvents writes events as an indented JSON array.
func saveEvents(filename string, events []model.Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return os.WriteFile(filename, append(raw, '\n'), filePermission)
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * 100
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("pagesWalked", stats.PagesWalked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
