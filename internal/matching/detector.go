package matching

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// MatchOutcome is what a completed swipe reports back to its caller.
type MatchOutcome struct {
	Matched bool
	Match   *MatchRecord
	// Created is true only for the caller whose insert actually created the
	// record. A caller that lost the race still observes Matched=true with
	// the same record.
	Created bool
}

// MatchDetector converts a newly written swipe plus its reciprocal into at
// most one MatchRecord per unordered pair. Uniqueness is delegated entirely
// to the store's constraint; no application-level locking.
type MatchDetector struct {
	repo  Repository
	retry RetryConfig
}

func NewMatchDetector(repo Repository, retry RetryConfig) *MatchDetector {
	return &MatchDetector{repo: repo, retry: retry}
}

// TryCompleteMatch checks whether the swipe just recorded makes the pair
// mutual, and if so creates (or fetches) the single MatchRecord.
func (d *MatchDetector) TryCompleteMatch(ctx context.Context, actorID, targetID int64, action SwipeAction) (*MatchOutcome, error) {
	if !action.CountsTowardMatch() {
		return &MatchOutcome{Matched: false}, nil
	}

	reciprocal, err := d.repo.GetSwipe(ctx, targetID, actorID)
	if errors.Is(err, ErrSwipeNotFound) {
		return &MatchOutcome{Matched: false}, nil
	}
	if err != nil {
		return nil, err
	}
	if !reciprocal.Action.CountsTowardMatch() {
		return &MatchOutcome{Matched: false}, nil
	}

	// Both directions qualify. Insert-if-absent is idempotent with respect
	// to the uniqueness constraint, so retrying after a timeout is safe.
	match := &MatchRecord{
		ID:      uuid.NewString(),
		User1ID: actorID,
		User2ID: targetID,
		Status:  MatchStatusActive,
	}

	var outcome *InsertOutcome
	err = withRetry(ctx, d.retry, func() error {
		var insertErr error
		outcome, insertErr = d.repo.InsertMatchIfAbsent(ctx, match)
		return insertErr
	})
	if err != nil {
		return nil, err
	}

	if outcome.Created {
		RecordMatch()
	} else {
		RecordMatchRaceLoss()
	}

	return &MatchOutcome{Matched: true, Match: outcome.Match, Created: outcome.Created}, nil
}
