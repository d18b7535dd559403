// Package errs contains sentinel errors used across layers for stable error mapping.
//
// Every specific sentinel wraps exactly one kind sentinel, so callers may test
// either the precise condition or the broad family with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., slug taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrBadRequest indicates the operation is invalid for the current state.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates failed authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIntegrity indicates corrupted or tampered stored data. Never recoverable by the caller.
	ErrIntegrity = errors.New("integrity violation")
)

// Not found.
var (
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrProjectNotFound     = fmt.Errorf("project %w", ErrNotFound)
	ErrMemberNotFound      = fmt.Errorf("member %w", ErrNotFound)
	ErrEnvironmentNotFound = fmt.Errorf("environment %w", ErrNotFound)
	ErrBranchNotFound      = fmt.Errorf("branch %w", ErrNotFound)
	ErrCommitNotFound      = fmt.Errorf("commit %w", ErrNotFound)
	ErrItemNotFound        = fmt.Errorf("item %w", ErrNotFound)
)

// Already exists.
var (
	ErrEmailTaken           = fmt.Errorf("email %w", ErrAlreadyExists)
	ErrProjectSlugTaken     = fmt.Errorf("project slug %w", ErrAlreadyExists)
	ErrEnvironmentSlugTaken = fmt.Errorf("environment slug %w", ErrAlreadyExists)
	ErrBranchSlugTaken      = fmt.Errorf("branch slug %w", ErrAlreadyExists)
	ErrMemberExists         = fmt.Errorf("member %w", ErrAlreadyExists)
	ErrDefaultExists        = fmt.Errorf("default %w", ErrAlreadyExists)
	ErrCommitExists         = fmt.Errorf("commit timestamp %w", ErrAlreadyExists)
)

// Bad request.
var (
	ErrArchivedProject            = fmt.Errorf("%w: project is archived", ErrBadRequest)
	ErrDefaultBranchDeletion      = fmt.Errorf("%w: default branch cannot be deleted", ErrBadRequest)
	ErrDefaultEnvironmentDeletion = fmt.Errorf("%w: default environment cannot be deleted", ErrBadRequest)
	ErrAlreadyDefault             = fmt.Errorf("%w: already set as default", ErrBadRequest)
	ErrAlreadyOwner               = fmt.Errorf("%w: already the owner of this project", ErrBadRequest)
	ErrImmutableField             = fmt.Errorf("%w: immutable field", ErrBadRequest)
	ErrSlugConflict               = fmt.Errorf("%w: slug already taken", ErrBadRequest)
	ErrContainerMisuse            = fmt.Errorf("%w: container type misuse", ErrBadRequest)
	ErrSchema                     = fmt.Errorf("%w: json schema", ErrBadRequest)
	ErrInvalidSecret              = fmt.Errorf("%w: wrong secret format", ErrBadRequest)
	ErrUnsupportedType            = fmt.Errorf("%w: unsupported item type", ErrBadRequest)
	ErrDanglingParent             = fmt.Errorf("%w: parent is not an active object", ErrBadRequest)
	ErrNestingTooDeep             = fmt.Errorf("%w: nesting too deep", ErrBadRequest)
	ErrInvalidInput               = fmt.Errorf("%w: invalid input", ErrBadRequest)
)

// Unauthorized.
var (
	ErrNotMember    = fmt.Errorf("%w: you do not have access to this project", ErrUnauthorized)
	ErrNotOwner     = fmt.Errorf("%w: only the project owner can perform this action", ErrUnauthorized)
	ErrOwnerRemoval = fmt.Errorf("%w: project owner cannot be removed", ErrUnauthorized)
)

// Integrity.
var (
	ErrMultipleVersions = fmt.Errorf("%w: more than one winning version", ErrIntegrity)
	ErrDecrypt          = fmt.Errorf("%w: secret failed authentication", ErrIntegrity)
	ErrCorruptValue     = fmt.Errorf("%w: stored secret does not match its type", ErrIntegrity)
)
