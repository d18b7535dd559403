// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// Store runs units of work atomically.
type Store interface {
	// WithTx runs fn in one transaction. The transaction commits only when fn
	// returns nil; any error, panic or context cancellation rolls it back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes every collection bound to one open transaction.
type Tx interface {
	Users() UserRepository
	Projects() ProjectRepository
	Members() MemberRepository
	Environments() EnvironmentRepository
	Branches() BranchRepository
	Commits() CommitRepository
	Items() ItemRepository
}
