package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/watsh-io/backend/internal/repository"
)

// Store implements repository.Store on a Postgres pool.
type Store struct{ db *DB }

var _ repository.Store = (*Store)(nil)

// NewStore constructs a transactional store.
func NewStore(db *DB) *Store { return &Store{db: db} }

// WithTx runs fn in one transaction, committing only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		// Rollback must still reach the server after the caller went away.
		rbCtx := context.WithoutCancel(ctx)
		if p := recover(); p != nil {
			_ = tx.Rollback(rbCtx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(rbCtx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	return fn(ctx, txRepos{q: tx})
}

type txRepos struct{ q querier }

func (t txRepos) Users() repository.UserRepository { return &UserRepo{q: t.q} }
func (t txRepos) Projects() repository.ProjectRepository { return &ProjectRepo{q: t.q} }
func (t txRepos) Members() repository.MemberRepository { return &MemberRepo{q: t.q} }
func (t txRepos) Environments() repository.EnvironmentRepository {
	return &EnvironmentRepo{q: t.q}
}
func (t txRepos) Branches() repository.BranchRepository { return &BranchRepo{q: t.q} }
func (t txRepos) Commits() repository.CommitRepository { return &CommitRepo{q: t.q} }
func (t txRepos) Items() repository.ItemRepository { return &ItemRepo{q: t.q} }
