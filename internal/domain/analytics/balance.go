package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Score thresholds used by recommendations.
const (
	LowSphereScore  = 4
	HighSphereScore = 8
	LowMoodScore    = 40
	HighMoodScore   = 70
)

// SpherePoint is one axis of the balance radar.
type SpherePoint struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Score  int    `json:"score"`
	Events int    `json:"events"`
}

// Balance summarizes self-rated sphere scores.
type Balance struct {
	Points  []SpherePoint `json:"points"`
	Average float64       `json:"average"`
	Lowest  *SpherePoint  `json:"lowest,omitempty"`
	Highest *SpherePoint  `json:"highest,omitempty"`
}

// SphereBalance joins the spheres with the per-sphere event counts of
// stats. Points keep the sphere order; ties for lowest and highest go to
// the first sphere listed.
func SphereBalance(spheres []model.LifeSphere, stats Statistics) Balance {
	b := Balance{Points: make([]SpherePoint, 0, len(spheres))}
	if len(spheres) == 0 {
		return b
	}
	total := 0
	lo, hi := 0, 0
	for i, s := range spheres {
		p := SpherePoint{
			ID:     s.ID,
			Name:   s.Name,
			Color:  s.Color,
			Score:  model.ClampScore(s.Score),
			Events: stats.SphereCounts[s.ID],
		}
		b.Points = append(b.Points, p)
		total += p.Score
		if p.Score < b.Points[lo].Score {
			lo = i
		}
		if p.Score > b.Points[hi].Score {
			hi = i
		}
	}
	b.Average = math.Round(float64(total)*10/float64(len(spheres))) / 10
	b.Lowest = &b.Points[lo]
	b.Highest = &b.Points[hi]
	return b
}

// Recommendation is a generated suggestion for the report.
type Recommendation struct {
	Kind    string `json:"kind"`
	Sphere  string `json:"sphere,omitempty"`
	Message string `json:"message"`
}

// Recommendation kinds.
const (
	KindLowScore   = "low_score"
	KindNeglected  = "neglected"
	KindLowMood    = "low_mood"
	KindGoodMood   = "good_mood"
	KindStrength   = "strength"
	KindGetStarted = "get_started"
)

// Recommendations derives suggestions from the statistics and the user's
// spheres. Output order is stable for the same input.
func Recommendations(stats Statistics, spheres []model.LifeSphere) []Recommendation {
	var out []Recommendation
	if stats.TotalEvents == 0 {
		out = append(out, Recommendation{
			Kind:    KindGetStarted,
			Message: "Log a few events to start seeing how your life spheres balance out.",
		})
	}

	sorted := make([]model.LifeSphere, len(spheres))
	copy(sorted, spheres)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	for _, s := range sorted {
		if model.ClampScore(s.Score) <= LowSphereScore {
			out = append(out, Recommendation{
				Kind:    KindLowScore,
				Sphere:  s.ID,
				Message: fmt.Sprintf("%s is rated %d/10. Plan one small step to improve it this week.", s.Name, model.ClampScore(s.Score)),
			})
		}
	}

	if stats.TotalEvents > 0 {
		for _, s := range spheres {
			if stats.SphereCounts[s.ID] == 0 {
				out = append(out, Recommendation{
					Kind:    KindNeglected,
					Sphere:  s.ID,
					Message: fmt.Sprintf("No events were logged for %s in this period.", s.Name),
				})
			}
		}
		switch {
		case stats.MoodScore < LowMoodScore:
			out = append(out, Recommendation{
				Kind:    KindLowMood,
				Message: fmt.Sprintf("Average mood is %d/100. Look at which spheres the negative events came from.", stats.MoodScore),
			})
		case stats.MoodScore >= HighMoodScore:
			out = append(out, Recommendation{
				Kind:    KindGoodMood,
				Message: fmt.Sprintf("Average mood is %d/100. Keep doing what works.", stats.MoodScore),
			})
		}
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		s := sorted[i]
		if model.ClampScore(s.Score) < HighSphereScore {
			break
		}
		out = append(out, Recommendation{
			Kind:    KindStrength,
			Sphere:  s.ID,
			Message: fmt.Sprintf("%s is a strength at %d/10.", s.Name, model.ClampScore(s.Score)),
		})
	}
	return out
}
