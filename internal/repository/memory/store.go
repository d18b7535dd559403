// Package memory is an in-process repository.Store used for local runs and
// service tests. Transactions are serialized: each one works on a private
// clone of the state that replaces the live state only on success.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

type state struct {
	users        []model.User
	projects     []model.Project
	members      []model.Member
	environments []model.Environment
	branches     []model.Branch
	commits      []model.Commit
	items        []model.ItemVersion // insertion order is the tie-breaker
}

func (s *state) clone() *state {
	return &state{
		users:        slices.Clone(s.users),
		projects:     slices.Clone(s.projects),
		members:      slices.Clone(s.members),
		environments: slices.Clone(s.environments),
		branches:     slices.Clone(s.branches),
		commits:      slices.Clone(s.commits),
		items:        slices.Clone(s.items),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{st: &state{}} }

// WithTx runs fn against a clone of the state and publishes the clone only
// when fn returns nil and ctx is still live.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, txRepos{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// ItemRows returns the number of item version rows. Tests use it to check
// the log only grows.
func (s *Store) ItemRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.items)
}

type txRepos struct{ st *state }

func (t txRepos) Users() repository.UserRepository { return userRepo{t.st} }
func (t txRepos) Projects() repository.ProjectRepository { return projectRepo{t.st} }
func (t txRepos) Members() repository.MemberRepository { return memberRepo{t.st} }
func (t txRepos) Environments() repository.EnvironmentRepository { return environmentRepo{t.st} }
func (t txRepos) Branches() repository.BranchRepository { return branchRepo{t.st} }
func (t txRepos) Commits() repository.CommitRepository { return commitRepo{t.st} }
func (t txRepos) Items() repository.ItemRepository { return itemRepo{t.st} }
