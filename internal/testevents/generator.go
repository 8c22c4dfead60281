package testevents

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

var (
	titles = []string{
		"Morning run", "Team standup", "Call with family", "Read a chapter",
		"Cooked dinner", "Missed the train", "Paid the bills", "Yoga class",
		"Late night at work", "Met an old friend", "Doctor visit", "Weekend hike",
	}
	emojis = []string{"😊", "😐", "😞", "🏃", "📚", "💼", "❤️", "💰"}
)

// generator builds reproducible event payloads for a seed.
type generator struct {
	rng     *rand.Rand
	spheres []string
	end     time.Time
	days    int
}

func newGenerator(cfg *Config, sphereIDs []string) *generator {
	return &generator{
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		spheres: sphereIDs,
		end:     cfg.End.UTC().Truncate(24 * time.Hour),
		days:    cfg.Days,
	}
}

// events returns n payloads. Emotions lean positive the way a real journal does.
func (g *generator) events(n int) []model.EventInput {
	out := make([]model.EventInput, n)
	for i := range out {
		out[i] = g.event(i)
	}
	return out
}

func (g *generator) event(i int) model.EventInput {
	day := g.end.AddDate(0, 0, -g.rng.IntN(g.days))
	in := model.EventInput{
		Title:   fmt.Sprintf("%s #%d", titles[g.rng.IntN(len(titles))], i),
		Emoji:   emojis[g.rng.IntN(len(emojis))],
		Emotion: g.emotion(),
		Date:    day.Format(time.DateOnly),
		Time:    fmt.Sprintf("%02d:%02d", g.rng.IntN(24), g.rng.IntN(60)),
		Spheres: g.pickSpheres(),
	}
	if g.rng.IntN(3) == 0 {
		in.Description = "generated by test-events"
	}
	return in
}

func (g *generator) emotion() model.Emotion {
	switch r := g.rng.IntN(10); {
	case r < 5:
		return model.EmotionPositive
	case r < 8:
		return model.EmotionNeutral
	default:
		return model.EmotionNegative
	}
}

// pickSpheres tags zero to three distinct spheres.
func (g *generator) pickSpheres() []string {
	if len(g.spheres) == 0 {
		return []string{}
	}
	k := g.rng.IntN(min(3, len(g.spheres)) + 1)
	perm := g.rng.Perm(len(g.spheres))
	out := make([]string, 0, k)
	for _, idx := range perm[:k] {
		out = append(out, g.spheres[idx])
	}
	return out
}

// dateRange returns the first and last date covered by the generator.
func (g *generator) dateRange() (from, to string) {
	return g.end.AddDate(0, 0, -(g.days - 1)).Format(time.DateOnly), g.end.Format(time.DateOnly)
}
