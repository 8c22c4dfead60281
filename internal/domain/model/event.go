// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Emotion is the subjective tone attached to an event.
type Emotion string

const (
	EmotionPositive Emotion = "positive"
	EmotionNeutral  Emotion = "neutral"
	EmotionNegative Emotion = "negative"
)

// Emotions lists the recognized emotions in display order.
var Emotions = []Emotion{EmotionPositive, EmotionNeutral, EmotionNegative}

// Valid reports whether e is one of the recognized emotions.
func (e Emotion) Valid() bool {
	switch e {
	case EmotionPositive, EmotionNeutral, EmotionNegative:
		return true
	}
	return false
}

// Weight returns +1, 0 or -1 for the mood score. ok is false for
// unrecognized values.
func (e Emotion) Weight() (weight int, ok bool) {
	switch e {
	case EmotionPositive:
		return 1, true
	case EmotionNeutral:
		return 0, true
	case EmotionNegative:
		return -1, true
	}
	return 0, false
}

// DateLayout is the calendar-date format used for Event.Date.
const DateLayout = "2006-01-02"

// Event is one logged occurrence. Spheres holds sphere identifiers only;
// they need not resolve to an existing sphere.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Emoji       string    `json:"emoji"`
	Emotion     Emotion   `json:"emotion"`
	Spheres     []string  `json:"spheres"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasSphere reports whether the event is tagged with sphere id.
func (e *Event) HasSphere(id string) bool {
	for _, s := range e.Spheres {
		if s == id {
			return true
		}
	}
	return false
}

// EventInput is the payload accepted when creating an event.
type EventInput struct {
	Title       string   `json:"title" validate:"required,notblank,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Emoji       string   `json:"emoji" validate:"max=16"`
	Emotion     Emotion  `json:"emotion" validate:"required,emotion"`
	Spheres     []string `json:"spheres" validate:"dive,required"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string   `json:"time" validate:"omitempty,clock"`
}

// Event builds an Event owned by userID from the input. Identifiers and
// timestamps are left to the store.
func (in *EventInput) Event(userID string) Event {
	spheres := in.Spheres
	if spheres == nil {
		spheres = []string{}
	}
	return Event{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Emoji:       in.Emoji,
		Emotion:     in.Emotion,
		Spheres:     dedupeIDs(spheres),
		Date:        in.Date,
		Time:        in.Time,
	}
}

// EventPatch carries the fields of an edit; nil fields are left unchanged.
type EventPatch struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Emoji       *string   `json:"emoji,omitempty" validate:"omitempty,max=16"`
	Emotion     *Emotion  `json:"emotion,omitempty" validate:"omitempty,emotion"`
	Spheres     *[]string `json:"spheres,omitempty"`
	Date        *string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time        *string   `json:"time,omitempty" validate:"omitempty,clock"`
}

// Empty reports whether the patch changes nothing.
func (p *EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Emoji == nil && p.Emotion == nil &&
		p.Spheres == nil && p.Date == nil && p.Time == nil
}

// Apply returns a copy of e with the patch applied.
func (p *EventPatch) Apply(e Event) Event {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Emoji != nil {
		e.Emoji = *p.Emoji
	}
	if p.Emotion != nil {
		e.Emotion = *p.Emotion
	}
	if p.Spheres != nil {
		e.Spheres = dedupeIDs(*p.Spheres)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	return e
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
