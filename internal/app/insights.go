package service

import (
	"context"
	"errors"

	"github.com/Aygren/balendip-sub000/internal/adapters/cache"
	"github.com/Aygren/balendip-sub000/internal/adapters/export"
	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/analytics"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Analytics is the analytics view over a date range.
type Analytics struct {
	From            string                     `json:"from,omitempty"`
	To              string                     `json:"to,omitempty"`
	Statistics      analytics.Statistics       `json:"statistics"`
	EmotionShares   []analytics.EmotionShare   `json:"emotion_shares"`
	Balance         analytics.Balance          `json:"balance"`
	Recommendations []analytics.Recommendation `json:"recommendations"`
	// Truncated reports that the range held more events than are loaded.
	Truncated bool `json:"truncated"`
}

// Analytics aggregates the user's events between from and to (inclusive,
// either may be empty) and joins them with the sphere scores.
func (s *Service) Analytics(ctx context.Context, from, to string) (Analytics, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return Analytics{}, err
	}
	filter := model.EventFilter{From: from, To: to}.Normalize()
	if err := model.Validate(filter); err != nil {
		return Analytics{}, &store.ClientError{Kind: store.ErrValidation, Err: err}
	}

	key := cache.AnalyticsKey(p.userID, filter.From, filter.To)
	return cache.Fetch(ctx, s.cache, key, s.listPolicy, func(fctx context.Context) (Analytics, error) {
		fctx = p.bind(fctx)
		events, truncated, err := s.pager.Collect(fctx, filter, s.maxCollect)
		if err != nil {
			return Analytics{}, err
		}
		spheres, err := s.listSpheres(fctx, p)
		if err != nil {
			return Analytics{}, err
		}

		stats := s.aggregate(fctx, p.userID, events)
		return Analytics{
			From:            filter.From,
			To:              filter.To,
			Statistics:      stats,
			EmotionShares:   analytics.Shares(stats.EmotionCounts),
			Balance:         analytics.SphereBalance(spheres, stats),
			Recommendations: analytics.Recommendations(stats, spheres),
			Truncated:       truncated,
		}, nil
	})
}

func (s *Service) aggregate(ctx context.Context, userID string, events []model.Event) analytics.Statistics {
	stats := analytics.Aggregate(events)
	for _, w := range stats.Warnings {
		s.logger.Warn(ctx, "skipping event with invalid data",
			logger.String("userID", userID),
			logger.String("eventID", w.EventID),
			logger.String("value", w.Value),
			logger.String("reason", w.Reason),
		)
	}
	metrics.RecordAggregationWarnings(len(stats.Warnings))
	return stats
}

// Export renders a report. Events and spheres missing from req are loaded
// for the user, events limited to the requested range.
func (s *Service) Export(ctx context.Context, req export.Request) (export.Document, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return export.Document{}, err
	}
	if err := req.DateRange.Validate(); err != nil {
		return export.Document{}, &store.ClientError{Kind: store.ErrValidation, Err: err}
	}

	if req.Events == nil {
		filter := model.EventFilter{From: req.DateRange.Start, To: req.DateRange.End}
		events, truncated, err := s.pager.Collect(ctx, filter, s.maxCollect)
		if err != nil {
			return export.Document{}, err
		}
		if truncated {
			s.logger.Warn(ctx, "export truncated",
				logger.String("userID", p.userID),
				logger.Int("limit", s.maxCollect),
			)
		}
		req.Events = events
	}
	if req.Spheres == nil {
		spheres, err := s.listSpheres(ctx, p)
		if err != nil {
			return export.Document{}, err
		}
		req.Spheres = spheres
	}

	doc, err := export.Render(req)
	switch {
	case errors.Is(err, export.ErrUnknownFormat), errors.Is(err, export.ErrInvalidRange):
		return export.Document{}, &store.ClientError{Kind: store.ErrValidation, Err: err}
	case err != nil:
		return export.Document{}, err
	}
	s.logger.Info(ctx, "export generated",
		logger.String("userID", p.userID),
		logger.String("format", string(req.Format)),
		logger.Int("events", len(req.Events)),
		logger.Int("bytes", len(doc.Data)),
	)
	return doc, nil
}
