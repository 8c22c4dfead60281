package testevents

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aygren/balendip-sub000/internal/domain/analytics"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// walkListing follows next_page_token until the listing is exhausted and
// checks that pages come back newest first without repeats.
func walkListing(ctx context.Context, c *Client, from, to string, size int, stats *Stats) ([]model.Event, error) {
	var (
		all   []model.Event
		seen  = make(map[string]struct{})
		token string
	)
	for {
		page, err := c.listEvents(ctx, from, to, token, size)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", stats.PagesWalked+1, err)
		}
		stats.PagesWalked++
		for i := range page.Events {
			e := page.Events[i]
			if _, dup := seen[e.ID]; dup {
				return nil, fmt.Errorf("%w: event %s listed twice", ErrVerification, e.ID)
			}
			seen[e.ID] = struct{}{}
			if n := len(all); n > 0 && !model.Less(&all[n-1], &e) {
				return nil, fmt.Errorf("%w: event %s out of order after %s", ErrVerification, e.ID, all[n-1].ID)
			}
			all = append(all, e)
		}
		if page.NextPageToken == nil {
			return all, nil
		}
		if len(page.Events) == 0 {
			return nil, fmt.Errorf("%w: empty page with a continuation token", ErrVerification)
		}
		token = *page.NextPageToken
	}
}

// verifyResults recomputes the statistics of created locally and checks
// that the server's numbers moved by exactly that much. The mood score is
// only comparable when the range was empty before the run.
func verifyResults(ctx context.Context, baseline, after remoteAnalytics, created, listed []model.Event) error {
	log := logger.Get()
	if after.Truncated {
		log.Warn(ctx, "server analytics were truncated; skipping statistics checks")
		return verifyListed(created, listed, -1)
	}

	expected := analytics.Aggregate(created)
	var errs []error
	check := func(name string, want, got int) {
		if want != got {
			errs = append(errs, fmt.Errorf("%s: want %d, got %d", name, want, got))
		}
	}

	b, a := baseline.Statistics, after.Statistics
	check("total_events", expected.TotalEvents, a.TotalEvents-b.TotalEvents)
	check("emotion positive", expected.EmotionCounts.Positive,
		a.EmotionCounts[string(model.EmotionPositive)]-b.EmotionCounts[string(model.EmotionPositive)])
	check("emotion neutral", expected.EmotionCounts.Neutral,
		a.EmotionCounts[string(model.EmotionNeutral)]-b.EmotionCounts[string(model.EmotionNeutral)])
	check("emotion negative", expected.EmotionCounts.Negative,
		a.EmotionCounts[string(model.EmotionNegative)]-b.EmotionCounts[string(model.EmotionNegative)])
	for id, n := range expected.SphereCounts {
		check("sphere "+id, n, a.SphereCounts[id]-b.SphereCounts[id])
	}
	if b.TotalEvents == 0 {
		check("mood_score", expected.MoodScore, a.MoodScore)
	}
	if err := verifyListed(created, listed, a.TotalEvents); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
	}
	log.Info(ctx, "statistics match the local recomputation",
		logger.Int("total", a.TotalEvents),
		logger.Int("moodScore", a.MoodScore))
	return nil
}

// verifyListed checks every created event was listed. total < 0 skips the
// count check.
func verifyListed(created, listed []model.Event, total int) error {
	ids := make(map[string]struct{}, len(listed))
	for _, e := range listed {
		ids[e.ID] = struct{}{}
	}
	missing := 0
	for _, e := range created {
		if _, ok := ids[e.ID]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d created events missing from the listing", ErrVerification, missing)
	}
	if total >= 0 && total != len(listed) {
		return fmt.Errorf("%w: listing has %d events, analytics counted %d", ErrVerification, len(listed), total)
	}
	return nil
}
