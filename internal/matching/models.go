package matching

import (
	"fmt"
	"time"
)

// SwipeAction is the one-directional action a user takes on another user.
type SwipeAction string

const (
	ActionLike      SwipeAction = "like"
	ActionSuperLike SwipeAction = "super_like"
	ActionPass      SwipeAction = "pass"
)

// IsValid reports whether the action is one of the known swipe actions.
func (a SwipeAction) IsValid() bool {
	switch a {
	case ActionLike, ActionSuperLike, ActionPass:
		return true
	}
	return false
}

// CountsTowardMatch reports whether the action can contribute to a mutual match.
// Pass never does, in either direction.
func (a SwipeAction) CountsTowardMatch() bool {
	return a == ActionLike || a == ActionSuperLike
}

// ExperienceLevel is an ordinal professional experience scale.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceJunior       ExperienceLevel = "junior"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceSenior       ExperienceLevel = "senior"
	ExperienceExpert       ExperienceLevel = "expert"
)

// Ordinal maps the level to 1-5. Unknown levels map to 0 so callers can
// treat them as missing data rather than guessing.
func (l ExperienceLevel) Ordinal() int {
	switch l {
	case ExperienceBeginner:
		return 1
	case ExperienceJunior:
		return 2
	case ExperienceIntermediate:
		return 3
	case ExperienceSenior:
		return 4
	case ExperienceExpert:
		return 5
	}
	return 0
}

// ProfileSnapshot is a read-only view of a user's matching-relevant attributes.
// It is supplied by the profile store and immutable for the duration of one
// scoring call. Optional attributes are pointers or nil slices so missing data
// is a type-level case.
type ProfileSnapshot struct {
	UserID            int64           `json:"user_id" db:"id"`
	Field             string          `json:"field" db:"field"`
	Skills            []string        `json:"skills"`
	Interests         []string        `json:"interests"`
	Experience        ExperienceLevel `json:"experience_level" db:"experience_level"`
	AvailabilityHours int             `json:"availability_hours" db:"availability_hours"`
	Latitude          *float64        `json:"latitude,omitempty" db:"location_lat"`
	Longitude         *float64        `json:"longitude,omitempty" db:"location_lng"`

	// Precomputed embedding vector, when the profile store has one.
	Embedding []float64 `json:"-"`
}

// HasLocation reports whether both coordinates are present.
func (p *ProfileSnapshot) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// SwipeRecord is one recorded action per ordered (actor, target) pair.
type SwipeRecord struct {
	ID        int64       `json:"id" db:"id"`
	ActorID   int64       `json:"actor_id" db:"actor_id"`
	TargetID  int64       `json:"target_id" db:"target_id"`
	Action    SwipeAction `json:"action" db:"action"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// MatchRecord is the durable record created the instant a pair becomes mutual.
// The pair is canonicalized so user1_id < user2_id always holds.
type MatchRecord struct {
	ID        string    `json:"id" db:"id"`
	User1ID   int64     `json:"user1_id" db:"user1_id"`
	User2ID   int64     `json:"user2_id" db:"user2_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const MatchStatusActive = "active"

// Users returns both sides of the match in canonical order.
func (m *MatchRecord) Users() [2]int64 {
	return [2]int64{m.User1ID, m.User2ID}
}

// ScoreBreakdown holds the un-weighted per-factor values in [0,1].
type ScoreBreakdown struct {
	SkillMatch         float64 `json:"skill_match"`
	InterestAlignment  float64 `json:"interest_alignment"`
	FieldCompatibility float64 `json:"field_compatibility"`
	ExperienceMatch    float64 `json:"experience_match"`
	AvailabilityMatch  float64 `json:"availability_match"`
	LocationProximity  float64 `json:"location_proximity"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
}

// ScoreResult is the outcome of scoring one pair of profiles.
type ScoreResult struct {
	Score       int            `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Reasons     []string       `json:"reasons"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ScoreContext carries optional inputs the caller may already have.
// Embeddings given here take precedence over the snapshots' own.
type ScoreContext struct {
	DistanceKm *float64
	EmbeddingA []float64
	EmbeddingB []float64
}

// CanonicalPair orders two user ids so {a,b} and {b,a} share one identity.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// PairKey builds the canonical unordered-pair key used for the score cache
// and match uniqueness.
func PairKey(a, b int64) string {
	lo, hi := CanonicalPair(a, b)
	return fmt.Sprintf("%d:%d", lo, hi)
}
