package model

import (
	"strings"
	"time"
)

// Score bounds for a life sphere.
const (
	MinSphereScore     = 1
	MaxSphereScore     = 10
	DefaultSphereScore = 5
)

// LifeSphere is one life category tracked by a user.
type LifeSphere struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	Score     int       `json:"score"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClampScore forces a score into [MinSphereScore, MaxSphereScore].
func ClampScore(score int) int {
	switch {
	case score < MinSphereScore:
		return MinSphereScore
	case score > MaxSphereScore:
		return MaxSphereScore
	}
	return score
}

// SphereInput is the payload accepted when creating a sphere.
type SphereInput struct {
	Name  string `json:"name" validate:"required,notblank,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
	Icon  string `json:"icon" validate:"max=32"`
	Score int    `json:"score"`
}

// Sphere builds a user-created sphere owned by userID. A zero score
// becomes the default score; anything else is clamped.
func (in *SphereInput) Sphere(userID string) LifeSphere {
	score := in.Score
	if score == 0 {
		score = DefaultSphereScore
	}
	return LifeSphere{
		UserID: userID,
		Name:   strings.TrimSpace(in.Name),
		Color:  in.Color,
		Icon:   in.Icon,
		Score:  ClampScore(score),
	}
}

// SpherePatch carries the fields of a sphere edit.
type SpherePatch struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,notblank,max=50"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Icon  *string `json:"icon,omitempty" validate:"omitempty,max=32"`
	Score *int    `json:"score,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *SpherePatch) Empty() bool {
	return p.Name == nil && p.Color == nil && p.Icon == nil && p.Score == nil
}

// Apply returns a copy of s with the patch applied and the score clamped.
func (p *SpherePatch) Apply(s LifeSphere) LifeSphere {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Icon != nil {
		s.Icon = *p.Icon
	}
	if p.Score != nil {
		s.Score = *p.Score
	}
	s.Score = ClampScore(s.Score)
	return s
}

// DefaultSpheres returns the catalogue seeded for new users. The Key of
// each template doubles as its selection identifier during onboarding.
func DefaultSpheres() []SphereTemplate {
	return []SphereTemplate{
		{Key: "health", Name: "Health", Color: "#10B981", Icon: "❤️"},
		{Key: "career", Name: "Career", Color: "#3B82F6", Icon: "💼"},
		{Key: "finance", Name: "Finance", Color: "#F59E0B", Icon: "💰"},
		{Key: "relationships", Name: "Relationships", Color: "#EC4899", Icon: "💕"},
		{Key: "family", Name: "Family", Color: "#8B5CF6", Icon: "🏠"},
		{Key: "growth", Name: "Personal Growth", Color: "#06B6D4", Icon: "🌱"},
		{Key: "leisure", Name: "Leisure", Color: "#F97316", Icon: "🎨"},
		{Key: "environment", Name: "Environment", Color: "#84CC16", Icon: "🌍"},
	}
}

// SphereTemplate is an entry of the default sphere catalogue.
type SphereTemplate struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Sphere instantiates the template for userID with the default score.
func (t SphereTemplate) Sphere(userID string) LifeSphere {
	return LifeSphere{
		UserID:    userID,
		Name:      t.Name,
		Color:     t.Color,
		Icon:      t.Icon,
		Score:     DefaultSphereScore,
		IsDefault: true,
	}
}

// DefaultSphereSet instantiates the whole catalogue for userID.
func DefaultSphereSet(userID string) []LifeSphere {
	templates := DefaultSpheres()
	out := make([]LifeSphere, len(templates))
	for i, t := range templates {
		out[i] = t.Sphere(userID)
	}
	return out
}

// LookupTemplate finds a catalogue entry by key.
func LookupTemplate(key string) (SphereTemplate, bool) {
	for _, t := range DefaultSpheres() {
		if t.Key == key {
			return t, true
		}
	}
	return SphereTemplate{}, false
}
