package matching

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// InsertOutcome is the explicit result of an insert-if-absent against the
// match uniqueness constraint. AlreadyExists (Created=false) is a first-class
// branch, not an error: it is how a race loss is resolved.
type InsertOutcome struct {
	Created bool
	Match   *MatchRecord
}

type Repository interface {
	// Swipe ledger
	CreateSwipe(ctx context.Context, rec *SwipeRecord) error
	GetSwipe(ctx context.Context, actorID, targetID int64) (*SwipeRecord, error)
	GetUserSwipes(ctx context.Context, actorID int64) ([]*SwipeRecord, error)
	// DeleteSwipeIfUnmatched removes the ordered-pair record only while no
	// match exists for the pair, atomically in the store.
	DeleteSwipeIfUnmatched(ctx context.Context, actorID, targetID int64) error

	// Matches
	InsertMatchIfAbsent(ctx context.Context, match *MatchRecord) (*InsertOutcome, error)
	GetMatchByPair(ctx context.Context, user1, user2 int64) (*MatchRecord, error)
	HasMatch(ctx context.Context, user1, user2 int64) (bool, error)
	GetUserMatches(ctx context.Context, userID int64) ([]*MatchRecord, error)

	// Profile snapshots for scoring
	GetProfileSnapshot(ctx context.Context, userID int64) (*ProfileSnapshot, error)
	FindCandidates(ctx context.Context, userID int64, limit int) ([]*ProfileSnapshot, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Swipe ledger

func (r *postgresRepository) CreateSwipe(ctx context.Context, rec *SwipeRecord) error {
	query := `
        INSERT INTO swipes (actor_id, target_id, action)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `

	err := r.db.QueryRowxContext(ctx, query, rec.ActorID, rec.TargetID, rec.Action).
		Scan(&rec.ID, &rec.CreatedAt)
	if isUniqueViolation(err) {
		return ErrSwipeExists
	}
	return storeError("create swipe", err)
}

func (r *postgresRepository) GetSwipe(ctx context.Context, actorID, targetID int64) (*SwipeRecord, error) {
	var rec SwipeRecord
	query := `
        SELECT id, actor_id, target_id, action, created_at
        FROM swipes
        WHERE actor_id = $1 AND target_id = $2
    `

	err := r.db.GetContext(ctx, &rec, query, actorID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSwipeNotFound
	}
	if err != nil {
		return nil, storeError("get swipe", err)
	}
	return &rec, nil
}

func (r *postgresRepository) GetUserSwipes(ctx context.Context, actorID int64) ([]*SwipeRecord, error) {
	var swipes []*SwipeRecord
	query := `
        SELECT id, actor_id, target_id, action, created_at
        FROM swipes
        WHERE actor_id = $1
        ORDER BY created_at DESC
    `

	if err := r.db.SelectContext(ctx, &swipes, query, actorID); err != nil {
		return nil, storeError("list swipes", err)
	}
	return swipes, nil
}

func (r *postgresRepository) DeleteSwipeIfUnmatched(ctx context.Context, actorID, targetID int64) error {
	query := `
        DELETE FROM swipes
        WHERE actor_id = $1 AND target_id = $2
          AND NOT EXISTS (
              SELECT 1 FROM matches
              WHERE user1_id = LEAST($1, $2) AND user2_id = GREATEST($1, $2)
          )
    `

	res, err := r.db.ExecContext(ctx, query, actorID, targetID)
	if err != nil {
		return storeError("delete swipe", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("delete swipe", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing deleted: either the swipe never existed or the pair already
	// matched. Distinguish for the caller.
	matched, err := r.HasMatch(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if matched {
		return ErrAlreadyMatched
	}
	return ErrSwipeNotFound
}

// Matches

func (r *postgresRepository) InsertMatchIfAbsent(ctx context.Context, match *MatchRecord) (*InsertOutcome, error) {
	// Canonicalize so the unique constraint covers the unordered pair.
	match.User1ID, match.User2ID = CanonicalPair(match.User1ID, match.User2ID)

	query := `
        INSERT INTO matches (id, user1_id, user2_id, status)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING id, user1_id, user2_id, status, created_at
    `

	var inserted MatchRecord
	err := r.db.QueryRowxContext(ctx, query, match.ID, match.User1ID, match.User2ID, match.Status).
		StructScan(&inserted)
	if err == nil {
		return &InsertOutcome{Created: true, Match: &inserted}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError("insert match", err)
	}

	// The unique constraint was already satisfied: a concurrent attempt won.
	existing, err := r.GetMatchByPair(ctx, match.User1ID, match.User2ID)
	if err != nil {
		return nil, err
	}
	return &InsertOutcome{Created: false, Match: existing}, nil
}

func (r *postgresRepository) GetMatchByPair(ctx context.Context, user1, user2 int64) (*MatchRecord, error) {
	lo, hi := CanonicalPair(user1, user2)

	var match MatchRecord
	query := `
        SELECT id, user1_id, user2_id, status, created_at
        FROM matches
        WHERE user1_id = $1 AND user2_id = $2
    `

	err := r.db.GetContext(ctx, &match, query, lo, hi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, storeError("get match", err)
	}
	return &match, nil
}

func (r *postgresRepository) HasMatch(ctx context.Context, user1, user2 int64) (bool, error) {
	lo, hi := CanonicalPair(user1, user2)

	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM matches
            WHERE user1_id = $1 AND user2_id = $2
        )
    `

	if err := r.db.GetContext(ctx, &exists, query, lo, hi); err != nil {
		return false, storeError("check match", err)
	}
	return exists, nil
}

func (r *postgresRepository) GetUserMatches(ctx context.Context, userID int64) ([]*MatchRecord, error) {
	var matches []*MatchRecord
	query := `
        SELECT id, user1_id, user2_id, status, created_at
        FROM matches
        WHERE user1_id = $1 OR user2_id = $1
        ORDER BY created_at DESC
    `

	if err := r.db.SelectContext(ctx, &matches, query, userID); err != nil {
		return nil, storeError("list matches", err)
	}
	return matches, nil
}

// Profile snapshots

const snapshotColumns = `
    id, field, skills, interests, experience_level,
    availability_hours, location_lat, location_lng, embedding
`

func (r *postgresRepository) GetProfileSnapshot(ctx context.Context, userID int64) (*ProfileSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM users WHERE id = $1`

	snapshot, err := scanSnapshot(r.db.QueryRowxContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, storeError("get profile snapshot", err)
	}
	return snapshot, nil
}

func (r *postgresRepository) FindCandidates(ctx context.Context, userID int64, limit int) ([]*ProfileSnapshot, error) {
	// Exclude the viewer, anyone the viewer already swiped on, and anyone
	// already matched with the viewer.
	query := `
        SELECT ` + snapshotColumns + `
        FROM users u
        WHERE u.id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM swipes s
              WHERE s.actor_id = $1 AND s.target_id = u.id
          )
          AND NOT EXISTS (
              SELECT 1 FROM matches m
              WHERE m.user1_id = LEAST($1, u.id) AND m.user2_id = GREATEST($1, u.id)
          )
        ORDER BY u.id
        LIMIT $2
    `

	rows, err := r.db.QueryxContext(ctx, query, userID, limit)
	if err != nil {
		return nil, storeError("find candidates", err)
	}
	defer rows.Close()

	var candidates []*ProfileSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, storeError("find candidates", err)
		}
		candidates = append(candidates, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("find candidates", err)
	}
	return candidates, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*ProfileSnapshot, error) {
	var p ProfileSnapshot
	err := row.Scan(
		&p.UserID, &p.Field,
		pq.Array(&p.Skills), pq.Array(&p.Interests),
		&p.Experience, &p.AvailabilityHours,
		&p.Latitude, &p.Longitude,
		pq.Array(&p.Embedding),
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Error classification

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// storeError wraps connectivity-class failures as transient so the service
// layer retries them; everything else passes through unchanged.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			// connection, transaction rollback, resource, operator intervention
			return &TransientStoreError{Op: op, Err: err}
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return &TransientStoreError{Op: op, Err: err}
	}
	return err
}
