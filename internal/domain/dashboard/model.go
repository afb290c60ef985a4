package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Stats is the clinic overview: headline counters plus a merged feed of the
// latest patients and procedures.
type Stats struct {
	TotalPatients       int        `json:"totalPatients"`
	ProceduresThisMonth int        `json:"proceduresThisMonth"`
	RecentActivity      []Activity `json:"recentActivity"`
}

// Activity is one entry of the recent-activity feed.
type Activity struct {
	Kind      string    `json:"kind"` // "patient" or "record"
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
