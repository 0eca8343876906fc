package diag

import (
	"time"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/scheduler"
)

// Status is one diagnostics sample.
type Status struct {
	Instance  string             `json:"instance"`
	Version   string             `json:"version"`
	StartedAt time.Time          `json:"started_at"`
	Services  []protocol.Service `json:"services"`
	Scheduler scheduler.Snapshot `json:"scheduler"`
}

// Sources is what the server observes.
type Sources struct {
	Instance  string
	Version   string
	Services  interface{ Records() []protocol.Service }
	Scheduler interface{ Snapshot() scheduler.Snapshot }
}

func (s Sources) sample(started time.Time) Status {
	st := Status{
		Instance:  s.Instance,
		Version:   s.Version,
		StartedAt: started,
		Services:  []protocol.Service{},
	}
	if s.Services != nil {
		st.Services = append(st.Services, s.Services.Records()...)
	}
	if s.Scheduler != nil {
		st.Scheduler = s.Scheduler.Snapshot()
	}
	return st
}
