// Package repositories stores surveys, runs and observations with bun and
// implements the persistence side of the ingest pipeline and the status
// aggregator.
package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/ingest"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
	"github.com/lofar-msss/obsdb/internal/status"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the bun-backed observation database.
type Store struct {
	db    *bun.DB
	retry retry.Policies
}

// NewStore wraps db. Writes are retried according to policies; a nil map
// uses the default policy for every operation.
func NewStore(db *bun.DB, policies retry.Policies) *Store {
	return &Store{db: db, retry: policies}
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) write(ctx context.Context, op, name string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retry.For(op), name, fn)
}

func (s *Store) inTx(ctx context.Context, op, name string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.write(ctx, op, name, func(ctx context.Context) error {
		return s.db.RunInTx(ctx, nil, fn)
	})
}

// knownObservations returns the subset of ids present in the observations
// table.
func knownObservations(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(ids) == 0 {
		return known, nil
	}
	var found []string
	err := db.NewSelect().
		Model((*models.Observation)(nil)).
		Column("obsid").
		Where("obsid IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

// beamIDsOf returns the ids of the beams of the given observations.
func beamIDsOf(ctx context.Context, db bun.IDB, obsIDs []string) ([]int64, error) {
	var ids []int64
	if len(obsIDs) == 0 {
		return ids, nil
	}
	err := db.NewSelect().
		Model((*models.Beam)(nil)).
		Column("id").
		Where("obsid IN (?)", bun.In(obsIDs)).
		Order("b.id").
		Scan(ctx, &ids)
	return ids, err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var (
	_ status.Store       = (*Store)(nil)
	_ ingest.Persistence = (*Store)(nil)
	_ ingest.Recorder    = (*Store)(nil)
)
