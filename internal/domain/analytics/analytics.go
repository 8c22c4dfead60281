// Package analytics derives statistics from an in-memory event collection.
// Every function here is pure: no I/O, deterministic output, malformed
// records degrade into warnings instead of errors.
package analytics

import (
	"math"
	"sort"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// TrendDays is the number of most recent dated buckets kept in the trend.
const TrendDays = 7

// EmotionCounts is the exact per-category tally. All categories are always
// present, zero included.
type EmotionCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Total returns the sum over recognized categories.
func (c EmotionCounts) Total() int { return c.Positive + c.Neutral + c.Negative }

func (c *EmotionCounts) add(e model.Emotion) {
	switch e {
	case model.EmotionPositive:
		c.Positive++
	case model.EmotionNeutral:
		c.Neutral++
	case model.EmotionNegative:
		c.Negative++
	}
}

// DailyBucket holds the emotion tally of one calendar date. Net is
// positive minus negative.
type DailyBucket struct {
	Date string `json:"date"`
	EmotionCounts
	Net int `json:"net"`
}

// Warning reports a record that was skipped by category tallies.
type Warning struct {
	EventID string `json:"event_id"`
	Value   string `json:"value"`
	Reason  string `json:"reason"`
}

// Statistics is the aggregate view of an event collection.
type Statistics struct {
	TotalEvents   int            `json:"total_events"`
	EmotionCounts EmotionCounts  `json:"emotion_counts"`
	SphereCounts  map[string]int `json:"sphere_counts"`
	DailyTrend    []DailyBucket  `json:"daily_trend"`
	MoodScore     int            `json:"mood_score"`
	Warnings      []Warning      `json:"warnings,omitempty"`
}

// Aggregate computes Statistics over events.
//
// Events with an unrecognized emotion are kept out of the emotion tallies,
// the trend and the mood score, and reported as warnings. TotalEvents is the
// raw collection size; such events join the mood denominator only with
// CountUnrecognized.
func Aggregate(events []model.Event, opts ...Option) Statistics {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	stats := Statistics{
		TotalEvents:  len(events),
		SphereCounts: make(map[string]int),
		DailyTrend:   []DailyBucket{},
	}

	days := make(map[string]*DailyBucket)
	sum := 0
	denominator := 0
	for i := range events {
		e := &events[i]
		for _, s := range e.Spheres {
			stats.SphereCounts[s]++
		}

		weight, ok := e.Emotion.Weight()
		if !ok {
			stats.Warnings = append(stats.Warnings, Warning{
				EventID: e.ID,
				Value:   string(e.Emotion),
				Reason:  "unrecognized emotion",
			})
			if o.countUnrecognized {
				denominator++
			}
			continue
		}
		sum += weight
		denominator++
		stats.EmotionCounts.add(e.Emotion)

		if e.Date == "" {
			continue
		}
		b, found := days[e.Date]
		if !found {
			b = &DailyBucket{Date: e.Date}
			days[e.Date] = b
		}
		b.add(e.Emotion)
	}

	stats.DailyTrend = trend(days)
	stats.MoodScore = moodScore(sum, denominator)
	return stats
}

func trend(days map[string]*DailyBucket) []DailyBucket {
	out := make([]DailyBucket, 0, len(days))
	for _, b := range days {
		b.Net = b.Positive - b.Negative
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > TrendDays {
		out = out[len(out)-TrendDays:]
	}
	return out
}

// moodScore normalizes a weight sum into [0,100]; zero events score 0.
func moodScore(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round((float64(sum)/float64(n) + 1) * 50))
}

// EmotionShare is one slice of the emotion distribution.
type EmotionShare struct {
	Emotion model.Emotion `json:"emotion"`
	Count   int           `json:"count"`
	Percent float64       `json:"percent"`
}

// Shares returns the emotion distribution in display order with
// percentages rounded to one decimal. Percentages are 0 for an empty tally.
func Shares(c EmotionCounts) []EmotionShare {
	total := c.Total()
	counts := map[model.Emotion]int{
		model.EmotionPositive: c.Positive,
		model.EmotionNeutral:  c.Neutral,
		model.EmotionNegative: c.Negative,
	}
	out := make([]EmotionShare, 0, len(model.Emotions))
	for _, e := range model.Emotions {
		s := EmotionShare{Emotion: e, Count: counts[e]}
		if total > 0 {
			s.Percent = math.Round(float64(counts[e])*1000/float64(total)) / 10
		}
		out = append(out, s)
	}
	return out
}
