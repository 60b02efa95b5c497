package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository enforces the same pair-uniqueness guarantees as the Postgres
// schema, atomically under one mutex, so the state machine can be exercised
// concurrently without a database.
type fakeRepository struct {
	mu          sync.Mutex
	profiles    map[int64]*ProfileSnapshot
	swipes      map[string]*SwipeRecord
	matches     map[string]*MatchRecord
	nextSwipeID int64

	// failures[op] injects that many transient failures before op succeeds.
	failures map[string]int
}

func newFakeRepository(profiles ...*ProfileSnapshot) *fakeRepository {
	r := &fakeRepository{
		profiles: make(map[int64]*ProfileSnapshot),
		swipes:   make(map[string]*SwipeRecord),
		matches:  make(map[string]*MatchRecord),
		failures: make(map[string]int),
	}
	for _, p := range profiles {
		r.profiles[p.UserID] = p
	}
	return r
}

func swipeKey(actorID, targetID int64) string {
	return fmt.Sprintf("%d->%d", actorID, targetID)
}

// maybeFail must be called with the mutex held.
func (r *fakeRepository) maybeFail(op string) error {
	if r.failures[op] > 0 {
		r.failures[op]--
		return &TransientStoreError{Op: op, Err: errors.New("injected failure")}
	}
	return nil
}

func (r *fakeRepository) CreateSwipe(ctx context.Context, rec *SwipeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.maybeFail("create swipe"); err != nil {
		return err
	}
	key := swipeKey(rec.ActorID, rec.TargetID)
	if _, exists := r.swipes[key]; exists {
		return ErrSwipeExists
	}
	r.nextSwipeID++
	rec.ID = r.nextSwipeID
	rec.CreatedAt = time.Now()
	stored := *rec
	r.swipes[key] = &stored
	return nil
}

func (r *fakeRepository) GetSwipe(ctx context.Context, actorID, targetID int64) (*SwipeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.swipes[swipeKey(actorID, targetID)]
	if !ok {
		return nil, ErrSwipeNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeRepository) GetUserSwipes(ctx context.Context, actorID int64) ([]*SwipeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*SwipeRecord
	for _, rec := range r.swipes {
		if rec.ActorID == actorID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepository) DeleteSwipeIfUnmatched(ctx context.Context, actorID, targetID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.maybeFail("delete swipe"); err != nil {
		return err
	}
	if _, matched := r.matches[PairKey(actorID, targetID)]; matched {
		return ErrAlreadyMatched
	}
	key := swipeKey(actorID, targetID)
	if _, ok := r.swipes[key]; !ok {
		return ErrSwipeNotFound
	}
	delete(r.swipes, key)
	return nil
}

func (r *fakeRepository) InsertMatchIfAbsent(ctx context.Context, match *MatchRecord) (*InsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.maybeFail("insert match"); err != nil {
		return nil, err
	}
	match.User1ID, match.User2ID = CanonicalPair(match.User1ID, match.User2ID)
	key := PairKey(match.User1ID, match.User2ID)
	if existing, ok := r.matches[key]; ok {
		copied := *existing
		return &InsertOutcome{Created: false, Match: &copied}, nil
	}
	match.CreatedAt = time.Now()
	stored := *match
	r.matches[key] = &stored
	copied := stored
	return &InsertOutcome{Created: true, Match: &copied}, nil
}

func (r *fakeRepository) GetMatchByPair(ctx context.Context, user1, user2 int64) (*MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.matches[PairKey(user1, user2)]
	if !ok {
		return nil, ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *fakeRepository) HasMatch(ctx context.Context, user1, user2 int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.matches[PairKey(user1, user2)]
	return ok, nil
}

func (r *fakeRepository) GetUserMatches(ctx context.Context, userID int64) ([]*MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*MatchRecord
	for _, match := range r.matches {
		if match.User1ID == userID || match.User2ID == userID {
			copied := *match
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepository) GetProfileSnapshot(ctx context.Context, userID int64) (*ProfileSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeRepository) FindCandidates(ctx context.Context, userID int64, limit int) ([]*ProfileSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*ProfileSnapshot
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if id == userID {
			continue
		}
		if _, swiped := r.swipes[swipeKey(userID, id)]; swiped {
			continue
		}
		if _, matched := r.matches[PairKey(userID, id)]; matched {
			continue
		}
		out = append(out, r.profiles[id])
	}
	return out, nil
}

func (r *fakeRepository) matchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func newTestService(repo Repository) Service {
	scorer := NewScorer(nil)
	cache := NewMemoryScoreCache(scorer, time.Hour, newFakeClock())
	retry := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	detector := NewMatchDetector(repo, retry)
	return NewService(repo, cache, detector, NewConversationStarterGenerator(), retry)
}

func seedProfiles() (*ProfileSnapshot, *ProfileSnapshot, *ProfileSnapshot) {
	alice := profileWith(1, func(p *ProfileSnapshot) { p.Skills = []string{"react", "typescript"} })
	bob := profileWith(2, func(p *ProfileSnapshot) { p.Skills = []string{"node", "typescript"} })
	carol := profileWith(3, func(p *ProfileSnapshot) {
		p.Skills = []string{"figma"}
		p.Field = "design"
	})
	return alice, bob, carol
}

func TestSwipe_Validation(t *testing.T) {
	alice, bob, _ := seedProfiles()
	svc := newTestService(newFakeRepository(alice, bob))

	_, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "wink"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 1, Action: "like"})
	assert.ErrorIs(t, err, ErrSelfSwipe)

	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 99, Action: "like"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSwipe_FirstLikeDoesNotMatch(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	svc := newTestService(repo)

	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)

	assert.True(t, result.Recorded)
	assert.False(t, result.Matched)
	assert.Nil(t, result.Match)
	assert.Equal(t, 0, repo.matchCount())
}

func TestSwipe_DuplicateIsConflict(t *testing.T) {
	alice, bob, _ := seedProfiles()
	svc := newTestService(newFakeRepository(alice, bob))

	_, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)

	// Same action and a different action both hit the ordered-pair constraint.
	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	assert.ErrorIs(t, err, ErrSwipeExists)
	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "pass"})
	assert.ErrorIs(t, err, ErrSwipeExists)
}

func TestSwipe_MutualLikeCreatesMatch(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "like"})
	require.NoError(t, err)

	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	require.NotNil(t, result.Match)
	assert.Equal(t, [2]int64{1, 2}, result.Match.Users)
	assert.NotEmpty(t, result.Match.ID)
	assert.Equal(t, 1, repo.matchCount())

	// Both profiles share typescript, so the icebreaker leads with it.
	assert.Contains(t, result.Icebreaker, "typescript")
}

func TestSwipe_SuperLikeCountsTowardMatch(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "super_like"})
	require.NoError(t, err)

	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, 1, repo.matchCount())
}

func TestSwipe_PassNeverMatches(t *testing.T) {
	alice, bob, carol := seedProfiles()
	repo := newFakeRepository(alice, bob, carol)
	svc := newTestService(repo)

	// Incoming like, outgoing pass: no match.
	_, err := svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "like"})
	require.NoError(t, err)
	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "pass"})
	require.NoError(t, err)
	assert.False(t, result.Matched)

	// Incoming pass, outgoing like: no match either.
	_, err = svc.Swipe(context.Background(), 3, &SwipeDTO{TargetID: 1, Action: "pass"})
	require.NoError(t, err)
	result, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 3, Action: "like"})
	require.NoError(t, err)
	assert.False(t, result.Matched)

	assert.Equal(t, 0, repo.matchCount())
}

func TestSwipe_RetriesTransientStoreFailure(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	repo.failures["create swipe"] = 2
	svc := newTestService(repo)

	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)
	assert.True(t, result.Recorded)
}

func TestSwipe_ExhaustedRetriesSurfaceTransient(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	repo.failures["create swipe"] = 10
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

// Two users completing the pair simultaneously must end with exactly one
// match record, and exactly one side observing Created.
func TestConcurrentMutualSwipe_ExactlyOneMatch(t *testing.T) {
	for round := 0; round < 50; round++ {
		alice, bob, _ := seedProfiles()
		repo := newFakeRepository(alice, bob)
		svc := newTestService(repo)

		var wg sync.WaitGroup
		results := make([]*SwipeResult, 2)
		errs := make([]error, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "like"})
		}()
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.Equal(t, 1, repo.matchCount())

		var matchedIDs []string
		for _, result := range results {
			if result.Matched {
				matchedIDs = append(matchedIDs, result.Match.ID)
			}
		}
		require.NotEmpty(t, matchedIDs, "at least one side must observe the match")
		for _, id := range matchedIDs {
			assert.Equal(t, matchedIDs[0], id, "all observers see the same match record")
		}
	}
}

// Replaying the match-completing swipe against the detector directly must
// reuse the existing record rather than minting a second one.
func TestDetector_IdempotentReplay(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	retry := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	detector := NewMatchDetector(repo, retry)

	require.NoError(t, repo.CreateSwipe(context.Background(), &SwipeRecord{ActorID: 1, TargetID: 2, Action: ActionLike}))
	require.NoError(t, repo.CreateSwipe(context.Background(), &SwipeRecord{ActorID: 2, TargetID: 1, Action: ActionLike}))

	first, err := detector.TryCompleteMatch(context.Background(), 1, 2, ActionLike)
	require.NoError(t, err)
	require.True(t, first.Matched)
	assert.True(t, first.Created)

	replay, err := detector.TryCompleteMatch(context.Background(), 2, 1, ActionLike)
	require.NoError(t, err)
	require.True(t, replay.Matched)
	assert.False(t, replay.Created)
	assert.Equal(t, first.Match.ID, replay.Match.ID)
	assert.Equal(t, 1, repo.matchCount())
}

func TestDetector_PassShortCircuits(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	detector := NewMatchDetector(repo, DefaultRetryConfig())

	outcome, err := detector.TryCompleteMatch(context.Background(), 1, 2, ActionPass)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
}

func TestUndo_ReturnsPairToNoAction(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)

	require.NoError(t, svc.Undo(context.Background(), 1, 2))

	_, err = repo.GetSwipe(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrSwipeNotFound)

	// The pair is back to "no action": a fresh swipe is accepted.
	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "pass"})
	require.NoError(t, err)
	assert.True(t, result.Recorded)
}

func TestUndo_NothingToUndo(t *testing.T) {
	alice, bob, _ := seedProfiles()
	svc := newTestService(newFakeRepository(alice, bob))

	err := svc.Undo(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrSwipeNotFound)
}

func TestUndo_RefusedOnceMatched(t *testing.T) {
	alice, bob, _ := seedProfiles()
	repo := newFakeRepository(alice, bob)
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "like"})
	require.NoError(t, err)
	result, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)
	require.True(t, result.Matched)

	err = svc.Undo(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyMatched)
	assert.Equal(t, 1, repo.matchCount(), "the match survives the refused undo")
}

func TestCompatibility(t *testing.T) {
	alice, bob, _ := seedProfiles()
	svc := newTestService(newFakeRepository(alice, bob))

	_, err := svc.Compatibility(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrSelfSwipe)

	_, err = svc.Compatibility(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	result, err := svc.Compatibility(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 80, result.Score)
	assert.False(t, result.GeneratedAt.IsZero())

	// Viewer and subject swapped read the same cached value.
	reverse, err := svc.Compatibility(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, result.Score, reverse.Score)
	assert.Equal(t, result.GeneratedAt, reverse.GeneratedAt)
}

func TestDiscover_RanksAndExcludes(t *testing.T) {
	alice, bob, carol := seedProfiles()
	dave := profileWith(4, func(p *ProfileSnapshot) {
		p.Skills = []string{"cooking"}
		p.Interests = []string{"golf"}
		p.Field = "law"
		p.Experience = ExperienceBeginner
	})
	repo := newFakeRepository(alice, bob, carol, dave)
	svc := newTestService(repo)

	ranked, err := svc.Discover(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// Scores descend; bob's complementary stack outranks dave's unrelated one.
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
	assert.Equal(t, int64(2), ranked[0].Profile.UserID)
	assert.Equal(t, int64(4), ranked[len(ranked)-1].Profile.UserID)

	// Swiped-on users drop out of the feed.
	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "pass"})
	require.NoError(t, err)

	ranked, err = svc.Discover(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for _, candidate := range ranked {
		assert.NotEqual(t, int64(2), candidate.Profile.UserID)
	}
}

func TestGetSwipesAndMatches(t *testing.T) {
	alice, bob, carol := seedProfiles()
	repo := newFakeRepository(alice, bob, carol)
	svc := newTestService(repo)

	_, err := svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 2, Action: "like"})
	require.NoError(t, err)
	_, err = svc.Swipe(context.Background(), 1, &SwipeDTO{TargetID: 3, Action: "pass"})
	require.NoError(t, err)
	_, err = svc.Swipe(context.Background(), 2, &SwipeDTO{TargetID: 1, Action: "like"})
	require.NoError(t, err)

	swipes, err := svc.GetSwipes(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, swipes, 2)

	matches, err := svc.GetMatches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(1), matches[0].User1ID)
	assert.Equal(t, int64(2), matches[0].User2ID)
	assert.Equal(t, MatchStatusActive, matches[0].Status)

	matches, err = svc.GetMatches(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
