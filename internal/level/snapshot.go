package level

import (
	"time"

	"gravitylevel/internal/align"
	"gravitylevel/internal/block"
)

type GyroStatus struct {
	EntityID int64      `json:"entity_id"`
	Name     string     `json:"name"`
	Saved    block.Axes `json:"saved"`
	Command  block.Axes `json:"command"`
}

// Snapshot is a copy of the program's status, safe to hand to other
// goroutines.
type Snapshot struct {
	State      State  `json:"state"`
	Scheduled  bool   `json:"scheduled"`
	Controller string `json:"controller,omitempty"`

	CandidateGyros int          `json:"candidate_gyros"`
	Gyros          []GyroStatus `json:"gyros,omitempty"`

	Cycles   uint64          `json:"cycles"`
	Solution *align.Solution `json:"solution,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (p *Program) Snapshot() Snapshot {
	snap := Snapshot{
		State:          p.state,
		Scheduled:      p.cfg.Scheduler.Active(),
		CandidateGyros: len(p.gyros),
		Cycles:         p.cycles,
		UpdatedAt:      p.updated,
	}
	if p.main != nil {
		snap.Controller = p.main.CustomName()
	}
	if len(p.engaged) > 0 {
		snap.Gyros = make([]GyroStatus, 0, len(p.engaged))
		for _, g := range p.engaged {
			saved, _ := p.store.Saved(g)
			snap.Gyros = append(snap.Gyros, GyroStatus{
				EntityID: g.EntityID(),
				Name:     g.CustomName(),
				Saved:    saved,
				Command:  g.Axes(),
			})
		}
	}
	if p.haveSol {
		sol := p.last
		snap.Solution = &sol
	}
	if p.lastErr != nil {
		snap.LastError = p.lastErr.Error()
	}
	return snap
}

// SavedStates returns how many saved gyro records the program holds.
func (p *Program) SavedStates() int {
	return p.store.Len()
}
