package matching

import (
	"context"
	"log"
	"sort"
)

type Service interface {
	// Swipe records a one-directional action and completes the match when
	// the pair becomes mutual.
	Swipe(ctx context.Context, actorID int64, dto *SwipeDTO) (*SwipeResult, error)

	// Undo deletes the actor's swipe while no match derived from it exists,
	// returning the ordered pair to "no action".
	Undo(ctx context.Context, actorID, targetID int64) error

	// Compatibility scores the viewer against another user through the cache.
	Compatibility(ctx context.Context, viewerID, userID int64) (*ScoreResult, error)

	// Discover returns candidates ranked by compatibility.
	Discover(ctx context.Context, userID int64, limit int) ([]*RankedCandidate, error)

	GetMatches(ctx context.Context, userID int64) ([]*MatchRecord, error)
	GetSwipes(ctx context.Context, actorID int64) ([]*SwipeRecord, error)
}

type service struct {
	repo     Repository
	scores   ScoreProvider
	detector *MatchDetector
	starters ConversationStarterGenerator
	retry    RetryConfig
}

func NewService(repo Repository, scores ScoreProvider, detector *MatchDetector, starters ConversationStarterGenerator, retry RetryConfig) Service {
	return &service{
		repo:     repo,
		scores:   scores,
		detector: detector,
		starters: starters,
		retry:    retry,
	}
}

func (s *service) Swipe(ctx context.Context, actorID int64, dto *SwipeDTO) (*SwipeResult, error) {
	action := SwipeAction(dto.Action)
	if !action.IsValid() {
		return nil, ErrInvalidAction
	}
	if actorID == dto.TargetID {
		return nil, ErrSelfSwipe
	}

	// The target must resolve to a known profile.
	target, err := s.repo.GetProfileSnapshot(ctx, dto.TargetID)
	if err != nil {
		return nil, err
	}

	rec := &SwipeRecord{
		ActorID:  actorID,
		TargetID: dto.TargetID,
		Action:   action,
	}
	err = withRetry(ctx, s.retry, func() error {
		return s.repo.CreateSwipe(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	RecordSwipe(string(action))

	outcome, err := s.detector.TryCompleteMatch(ctx, actorID, dto.TargetID, action)
	if err != nil {
		// The swipe is durably recorded; the match insert is idempotent, so
		// surfacing the failure leaves a retry safe.
		return nil, err
	}

	result := &SwipeResult{Recorded: true, Matched: outcome.Matched}
	if outcome.Matched {
		result.Match = newMatchView(outcome.Match)
		if outcome.Created {
			result.Icebreaker = s.generateStarter(ctx, actorID, target, outcome.Match)
		}
	}
	return result, nil
}

// generateStarter is best effort; any failure degrades to no icebreaker.
func (s *service) generateStarter(ctx context.Context, actorID int64, target *ProfileSnapshot, match *MatchRecord) string {
	actor, err := s.repo.GetProfileSnapshot(ctx, actorID)
	if err != nil {
		return ""
	}
	score, err := s.scores.GetOrCompute(ctx, actor, target, s.buildContext(actor, target))
	if err != nil {
		return ""
	}
	starter, err := s.starters.Generate(actor, target, score)
	if err != nil {
		log.Printf("icebreaker unavailable for match %s: %v", match.ID, err)
		return ""
	}
	return starter
}

func (s *service) Undo(ctx context.Context, actorID, targetID int64) error {
	return withRetry(ctx, s.retry, func() error {
		return s.repo.DeleteSwipeIfUnmatched(ctx, actorID, targetID)
	})
}

func (s *service) Compatibility(ctx context.Context, viewerID, userID int64) (*ScoreResult, error) {
	if viewerID == userID {
		return nil, ErrSelfSwipe
	}

	viewer, err := s.repo.GetProfileSnapshot(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	other, err := s.repo.GetProfileSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.scores.GetOrCompute(ctx, viewer, other, s.buildContext(viewer, other))
}

func (s *service) Discover(ctx context.Context, userID int64, limit int) ([]*RankedCandidate, error) {
	viewer, err := s.repo.GetProfileSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.FindCandidates(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]*RankedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		score, err := s.scores.GetOrCompute(ctx, viewer, candidate, s.buildContext(viewer, candidate))
		if err != nil {
			continue
		}
		ranked = append(ranked, &RankedCandidate{
			Profile:   candidate,
			Score:     score.Score,
			Breakdown: score.Breakdown,
			Reasons:   score.Reasons,
		})
	}

	// Deterministic order: score descending, lower user id breaks ties.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Profile.UserID < ranked[j].Profile.UserID
	})

	return ranked, nil
}

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*MatchRecord, error) {
	return s.repo.GetUserMatches(ctx, userID)
}

func (s *service) GetSwipes(ctx context.Context, actorID int64) ([]*SwipeRecord, error) {
	return s.repo.GetUserSwipes(ctx, actorID)
}

// buildContext derives the optional scoring inputs available from two
// snapshots: distance when both sides have coordinates, embeddings when the
// profile store precomputed them.
func (s *service) buildContext(a, b *ProfileSnapshot) *ScoreContext {
	sctx := &ScoreContext{
		EmbeddingA: a.Embedding,
		EmbeddingB: b.Embedding,
	}
	if a.HasLocation() && b.HasLocation() {
		distance := HaversineDistanceKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		sctx.DistanceKm = &distance
	}
	return sctx
}
