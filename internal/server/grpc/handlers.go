package grpcserver

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/convert"
	"github.com/watsh-io/backend/internal/errs"
)

// --- Users ---

func (s *Server) createUser(ctx context.Context, _ uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	email, err := convert.String(req, "email")
	if err != nil {
		return nil, err
	}
	u, err := s.svc.Users.Create(ctx, email)
	if err != nil {
		return nil, err
	}
	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return map[string]any{"user": convert.User(*u), "access_token": tok}, nil
}

func (s *Server) getMe(ctx context.Context, user uuid.UUID, _ *structpb.Struct) (map[string]any, error) {
	u, err := s.svc.Users.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": convert.User(*u)}, nil
}

func (s *Server) updateEmail(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	email, err := convert.String(req, "email")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Users.UpdateEmail(ctx, user, email)
}

func (s *Server) deleteMe(ctx context.Context, user uuid.UUID, _ *structpb.Struct) (map[string]any, error) {
	return nil, s.svc.Users.Delete(ctx, user)
}

func (s *Server) getUserSnapshot(ctx context.Context, user uuid.UUID, _ *structpb.Struct) (map[string]any, error) {
	snap, err := s.svc.Users.Snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	return convert.UserSnapshot(*snap), nil
}

// --- Projects ---

func (s *Server) createProject(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	desc, err := convert.OptString(req, "description")
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Projects.Create(ctx, user, slug, desc)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": convert.Project(*p)}, nil
}

func (s *Server) getProject(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Projects.Get(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": convert.Project(*p)}, nil
}

func (s *Server) listProjects(ctx context.Context, user uuid.UUID, _ *structpb.Struct) (map[string]any, error) {
	ps, err := s.svc.Projects.List(ctx, user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"projects": convert.List(ps, convert.Project)}, nil
}

func (s *Server) updateProjectSlug(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Projects.UpdateSlug(ctx, user, projectID, slug)
}

func (s *Server) updateProjectDescription(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	desc, err := convert.OptString(req, "description")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Projects.UpdateDescription(ctx, user, projectID, desc)
}

// projectCall adapts the project operations that only need an id.
func projectCall(ctx context.Context, user uuid.UUID, req *structpb.Struct,
	fn func(ctx context.Context, userID, projectID uuid.UUID) error,
) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	return nil, fn(ctx, user, projectID)
}

func (s *Server) archiveProject(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	return projectCall(ctx, user, req, s.svc.Projects.Archive)
}

func (s *Server) unarchiveProject(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	return projectCall(ctx, user, req, s.svc.Projects.Unarchive)
}

func (s *Server) deleteProject(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	return projectCall(ctx, user, req, s.svc.Projects.Delete)
}

// --- Members ---

func (s *Server) listMembers(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	ms, err := s.svc.Members.List(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"members": convert.List(ms, convert.MemberUser)}, nil
}

func (s *Server) transferOwnership(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	email, err := convert.String(req, "email")
	if err != nil {
		return nil, err
	}
	owner, err := s.svc.Members.TransferOwnership(ctx, user, projectID, email)
	if err != nil {
		return nil, err
	}
	return map[string]any{"owner": convert.User(*owner)}, nil
}

func (s *Server) removeMember(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	memberID, err := convert.ID(req, "user_id")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Members.Remove(ctx, user, projectID, memberID)
}

func (s *Server) inviteMember(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	email, err := convert.String(req, "email")
	if err != nil {
		return nil, err
	}
	if err := s.svc.Members.Invite(ctx, user, projectID, email); err != nil {
		return nil, err
	}
	tok, err := s.issueInvitation(projectID, email)
	if err != nil {
		return nil, fmt.Errorf("sign invitation: %w", err)
	}
	return map[string]any{"invitation_token": tok}, nil
}

func (s *Server) acceptInvitation(ctx context.Context, _ uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	raw, err := convert.String(req, "invitation_token")
	if err != nil {
		return nil, err
	}
	projectID, email, err := s.parseInvitation(raw)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errs.ErrInvalidInput)
	}
	u, err := s.svc.Members.AcceptInvitation(ctx, projectID, email)
	if err != nil {
		return nil, err
	}
	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return map[string]any{
		"user":         convert.User(*u),
		"project_id":   projectID.String(),
		"access_token": tok,
	}, nil
}
