package onboarding

import (
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Progress is the persisted state of one user's onboarding.
type Progress struct {
	IsCompleted     bool               `json:"isCompleted"`
	Step            Step               `json:"step"`
	UserName        string             `json:"userName,omitempty"`
	Goal            string             `json:"goal,omitempty"`
	SelectedSpheres []string           `json:"selectedSpheres"`
	Spheres         []model.LifeSphere `json:"spheres"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
}

// NewProgress returns the state of a first visit.
func NewProgress() Progress {
	return Progress{Step: StepWelcome, SelectedSpheres: []string{}, Spheres: []model.LifeSphere{}}
}

// Update carries edits to the per-step data; nil fields are left alone.
type Update struct {
	UserName        *string             `json:"user_name,omitempty"`
	Goal            *string             `json:"goal,omitempty"`
	SelectedSpheres *[]string           `json:"selected_spheres,omitempty"`
	Spheres         *[]model.LifeSphere `json:"spheres,omitempty"`
}

func (p Progress) clone() Progress {
	out := p
	out.SelectedSpheres = append([]string{}, p.SelectedSpheres...)
	out.Spheres = append([]model.LifeSphere{}, p.Spheres...)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
