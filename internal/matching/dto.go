// internal/matching/dto.go
package matching

import "time"

// DTOs for API requests/responses

type SwipeDTO struct {
	TargetID int64  `json:"target_id" validate:"required,min=1"`
	Action   string `json:"action" validate:"required,oneof=like super_like pass"`
}

type UndoDTO struct {
	TargetID int64 `json:"target_id" validate:"required,min=1"`
}

// SwipeResult is the response to a swipe command.
type SwipeResult struct {
	Recorded   bool       `json:"recorded"`
	Matched    bool       `json:"matched"`
	Match      *MatchView `json:"match,omitempty"`
	Icebreaker string     `json:"icebreaker,omitempty"`
}

// MatchView is the caller-facing shape of a match record.
type MatchView struct {
	ID        string    `json:"id"`
	Users     [2]int64  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
}

func newMatchView(m *MatchRecord) *MatchView {
	return &MatchView{
		ID:        m.ID,
		Users:     m.Users(),
		CreatedAt: m.CreatedAt,
	}
}

// RankedCandidate is one entry of the discovery feed.
type RankedCandidate struct {
	Profile   *ProfileSnapshot `json:"profile"`
	Score     int              `json:"score"`
	Breakdown ScoreBreakdown   `json:"breakdown"`
	Reasons   []string         `json:"reasons"`
}
