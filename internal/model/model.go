// Package model defines domain entities used by services and repositories.
package model

import (
	"github.com/gofrs/uuid/v5"
)

// Root is the parent id of top-level items.
var Root = uuid.Nil

// Latest is the upper timestamp bound meaning "current state".
const Latest int64 = 9999999999999999

// MaxDepth bounds container nesting for writes and reads.
const MaxDepth = 64

// NewID mints a creation-ordered identifier.
func NewID() uuid.UUID { return uuid.Must(uuid.NewV7()) }

// User is an account. Authentication happens outside the engine.
type User struct {
	ID    uuid.UUID
	Email string // unique
}

// Project groups environments and members.
type Project struct {
	ID          uuid.UUID
	Slug        string // unique per owner
	Description string
	Owner       uuid.UUID // FK -> users.id
	Archived    bool
}

// Member grants a user access to a project.
type Member struct {
	ID      uuid.UUID
	User    uuid.UUID
	Project uuid.UUID
}

// MemberUser joins a membership with its user record.
type MemberUser struct {
	Member Member
	User   User
}

// Environment belongs to one project; exactly one per project is default.
type Environment struct {
	ID      uuid.UUID
	Project uuid.UUID
	Slug    string
	Default bool
}

// Branch belongs to one environment; exactly one per environment is default.
type Branch struct {
	ID          uuid.UUID
	Project     uuid.UUID
	Environment uuid.UUID
	Slug        string
	Default     bool
}

// Scope addresses one branch tree.
type Scope struct {
	Project     uuid.UUID
	Environment uuid.UUID
	Branch      uuid.UUID
}

// Commit is the unit of atomic change on a branch.
type Commit struct {
	ID        uuid.UUID
	Scope     Scope
	Author    uuid.UUID
	Message   string
	Timestamp int64 // unix ms, unique per branch
}

// ItemType is the declared JSON type of an item. Immutable for the item's life.
type ItemType string

// Item types.
const (
	TypeObject  ItemType = "object"
	TypeArray   ItemType = "array"
	TypeString  ItemType = "string"
	TypeNumber  ItemType = "number"
	TypeInteger ItemType = "integer"
	TypeBoolean ItemType = "boolean"
	TypeNull    ItemType = "null"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case TypeObject, TypeArray, TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeNull:
		return true
	}
	return false
}

// Container reports whether items of this type hold children instead of secrets.
func (t ItemType) Container() bool { return t == TypeObject || t == TypeArray }

// ItemVersion is one immutable row of an item's history.
type ItemVersion struct {
	Scope        Scope
	Item         uuid.UUID // stable identity
	Parent       uuid.UUID // Root for top-level items
	Slug         string
	Type         ItemType
	Active       bool
	SecretValue  *string // envelope blob; nil when no secret is configured
	SecretActive bool
	Commit       uuid.UUID
	Timestamp    int64 // copied from the commit
}

// ItemUpdate is a single change intent of a patch.
type ItemUpdate struct {
	Item         uuid.UUID
	Parent       uuid.UUID
	Type         ItemType
	Active       bool
	Slug         string
	SecretValue  *string // plaintext; nil keeps the stored secret
	SecretActive bool
}

// CommitEvent is emitted after a commit has been durably written.
type CommitEvent struct {
	Commit    uuid.UUID
	Scope     Scope
	Author    uuid.UUID
	Message   string
	Timestamp int64
	Rows      int // item version rows written
}

// EnvironmentSnapshot lists an environment with its branches.
type EnvironmentSnapshot struct {
	Environment Environment
	Branches    []Branch
}

// ProjectSnapshot lists a project with its members and environments.
type ProjectSnapshot struct {
	Project      Project
	Members      []Member
	Environments []EnvironmentSnapshot
}

// UserSnapshot is everything visible to one user.
type UserSnapshot struct {
	User     User
	Projects []ProjectSnapshot
}
