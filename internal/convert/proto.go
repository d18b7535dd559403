// Package convert maps between google.protobuf.Struct messages and domain types.
package convert

import (
	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/service"
)

// --- helpers ---

func id(u uuid.UUID) string { return u.String() }

// List renders xs with f as a structpb-compatible list.
func List[T any](xs []T, f func(T) map[string]any) []any {
	out := make([]any, 0, len(xs))
	for _, x := range xs {
		out = append(out, f(x))
	}
	return out
}

// --- accounts ---

// User renders a user.
func User(u model.User) map[string]any {
	return map[string]any{"id": id(u.ID), "email": u.Email}
}

// Project renders a project.
func Project(p model.Project) map[string]any {
	return map[string]any{
		"id":          id(p.ID),
		"slug":        p.Slug,
		"description": p.Description,
		"owner_id":    id(p.Owner),
		"archived":    p.Archived,
	}
}

// Member renders a membership.
func Member(m model.Member) map[string]any {
	return map[string]any{"id": id(m.ID), "user_id": id(m.User), "project_id": id(m.Project)}
}

// MemberUser renders a membership with its user.
func MemberUser(m model.MemberUser) map[string]any {
	out := Member(m.Member)
	out["email"] = m.User.Email
	return out
}

// Environment renders an environment.
func Environment(e model.Environment) map[string]any {
	return map[string]any{
		"id":         id(e.ID),
		"project_id": id(e.Project),
		"slug":       e.Slug,
		"default":    e.Default,
	}
}

// Branch renders a branch.
func Branch(b model.Branch) map[string]any {
	return map[string]any{
		"id":             id(b.ID),
		"project_id":     id(b.Project),
		"environment_id": id(b.Environment),
		"slug":           b.Slug,
		"default":        b.Default,
	}
}

// UserSnapshot renders everything visible to one user.
func UserSnapshot(s model.UserSnapshot) map[string]any {
	return map[string]any{
		"user": User(s.User),
		"projects": List(s.Projects, func(p model.ProjectSnapshot) map[string]any {
			out := Project(p.Project)
			out["members"] = List(p.Members, Member)
			out["environments"] = List(p.Environments, func(e model.EnvironmentSnapshot) map[string]any {
				env := Environment(e.Environment)
				env["branches"] = List(e.Branches, Branch)
				return env
			})
			return out
		}),
	}
}

// --- history ---

// Commit renders a commit.
func Commit(c model.Commit) map[string]any {
	return map[string]any{
		"id":             id(c.ID),
		"project_id":     id(c.Scope.Project),
		"environment_id": id(c.Scope.Environment),
		"branch_id":      id(c.Scope.Branch),
		"author_id":      id(c.Author),
		"message":        c.Message,
		"timestamp":      c.Timestamp,
	}
}

// Event renders a commit notification.
func Event(ev model.CommitEvent) map[string]any {
	return map[string]any{
		"id":             id(ev.Commit),
		"project_id":     id(ev.Scope.Project),
		"environment_id": id(ev.Scope.Environment),
		"branch_id":      id(ev.Scope.Branch),
		"author_id":      id(ev.Author),
		"message":        ev.Message,
		"timestamp":      ev.Timestamp,
		"rows":           ev.Rows,
	}
}

// Item renders an item with its opened value, when it has one.
func Item(it service.Item) map[string]any {
	out := map[string]any{
		"id":            id(it.ID),
		"parent_id":     id(it.Parent),
		"slug":          it.Slug,
		"type":          string(it.Type),
		"active":        it.Active,
		"secret_active": it.SecretActive,
		"commit_id":     id(it.Commit),
		"timestamp":     it.Timestamp,
	}
	if it.Value != nil {
		out["value"] = it.Value.Interface()
	}
	return out
}
