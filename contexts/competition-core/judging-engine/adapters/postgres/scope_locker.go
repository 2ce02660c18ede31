package postgresadapter

import (
	"context"
	"hash/fnv"

	"galileo/internal/shared/scopelock"

	"gorm.io/gorm"
)

// AdvisoryLocker serializes scoped mutations across replicas by holding
// pg_advisory_xact_lock for the duration of a wrapping transaction. A
// process-local keyed mutex runs in front so goroutines of one replica queue
// in memory instead of stacking idle sessions on the database lock.
type AdvisoryLocker struct {
	db    *gorm.DB
	local *scopelock.KeyedMutex
}

func NewAdvisoryLocker(db *gorm.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, local: scopelock.New()}
}

// WithinScope runs fn while the scope's advisory lock is held. The lock
// releases when the wrapping transaction ends, so fn's own repository calls
// and transactions complete before any other holder proceeds.
func (l *AdvisoryLocker) WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	return l.local.WithinScope(ctx, scope, func(ctx context.Context) error {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", scopeLockKey(scope)).Error; err != nil {
				return err
			}
			return fn(ctx)
		})
	})
}

// scopeLockKey folds a scope string onto the signed 64-bit key space
// pg_advisory_xact_lock accepts. The mapping must stay stable across
// releases or two replicas would serialize on different keys.
func scopeLockKey(scope string) int64 {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(scope))
	return int64(hash.Sum64())
}
