package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/convert"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/service"
)

// --- Environments ---

func (s *Server) createEnvironment(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	e, err := s.svc.Environments.Create(ctx, user, projectID, slug)
	if err != nil {
		return nil, err
	}
	return map[string]any{"environment": convert.Environment(*e)}, nil
}

func envIDs(req *structpb.Struct) (projectID, environmentID uuid.UUID, err error) {
	if projectID, err = convert.ID(req, "project_id"); err != nil {
		return
	}
	environmentID, err = convert.ID(req, "environment_id")
	return
}

func (s *Server) getEnvironment(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	e, err := s.svc.Environments.Get(ctx, user, projectID, environmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"environment": convert.Environment(*e)}, nil
}

func (s *Server) listEnvironments(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, err := convert.ID(req, "project_id")
	if err != nil {
		return nil, err
	}
	es, err := s.svc.Environments.List(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"environments": convert.List(es, convert.Environment)}, nil
}

func (s *Server) updateEnvironmentSlug(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Environments.UpdateSlug(ctx, user, projectID, environmentID, slug)
}

func (s *Server) setDefaultEnvironment(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Environments.SetDefault(ctx, user, projectID, environmentID)
}

func (s *Server) deleteEnvironment(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Environments.Delete(ctx, user, projectID, environmentID)
}

// --- Branches ---

func (s *Server) createBranch(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	b, err := s.svc.Branches.Create(ctx, user, projectID, environmentID, slug)
	if err != nil {
		return nil, err
	}
	return map[string]any{"branch": convert.Branch(*b)}, nil
}

func (s *Server) getBranch(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	b, err := s.svc.Branches.Get(ctx, user, sc.Project, sc.Environment, sc.Branch)
	if err != nil {
		return nil, err
	}
	return map[string]any{"branch": convert.Branch(*b)}, nil
}

func (s *Server) listBranches(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	projectID, environmentID, err := envIDs(req)
	if err != nil {
		return nil, err
	}
	bs, err := s.svc.Branches.List(ctx, user, projectID, environmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"branches": convert.List(bs, convert.Branch)}, nil
}

func (s *Server) updateBranchSlug(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Branches.UpdateSlug(ctx, user, sc, slug)
}

func (s *Server) setDefaultBranch(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Branches.SetDefault(ctx, user, sc)
}

func (s *Server) deleteBranch(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Branches.Delete(ctx, user, sc)
}

// --- Commits ---

func (s *Server) listCommits(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	cs, err := s.svc.Commits.List(ctx, user, sc)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commits": convert.List(cs, convert.Commit)}, nil
}

func (s *Server) getCommit(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	commitID, err := convert.ID(req, "commit_id")
	if err != nil {
		return nil, err
	}
	c, err := s.svc.Commits.Get(ctx, user, sc, commitID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commit": convert.Commit(*c)}, nil
}

// --- Items ---

// scopeAt reads the branch scope and the optional commit to read at.
func scopeAt(req *structpb.Struct) (model.Scope, *uuid.UUID, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return sc, nil, err
	}
	commitID, err := convert.OptID(req, "commit_id")
	return sc, commitID, err
}

// itemWrite reads the scope, item id and commit message shared by item writes.
func itemWrite(req *structpb.Struct) (sc model.Scope, itemID uuid.UUID, message string, err error) {
	if sc, err = convert.Scope(req); err != nil {
		return
	}
	if itemID, err = convert.ID(req, "item_id"); err != nil {
		return
	}
	message, err = convert.OptString(req, "message")
	return
}

func committed(c *model.Commit, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{"commit": convert.Commit(*c)}, nil
}

func (s *Server) createItem(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	in := service.NewItem{Parent: model.Root}
	parent, err := convert.OptID(req, "parent_id")
	if err != nil {
		return nil, err
	}
	if parent != nil {
		in.Parent = *parent
	}
	if in.Type, err = convert.ItemType(req, "type"); err != nil {
		return nil, err
	}
	if in.Slug, err = convert.String(req, "slug"); err != nil {
		return nil, err
	}
	if in.Secret, err = convert.Secret(req, "secret_value"); err != nil {
		return nil, err
	}
	message, err := convert.OptString(req, "message")
	if err != nil {
		return nil, err
	}

	itemID, c, err := s.svc.Items.Create(ctx, user, sc, in, message)
	if err != nil {
		return nil, err
	}
	return map[string]any{"item_id": itemID.String(), "commit": convert.Commit(*c)}, nil
}

func (s *Server) getItem(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, commitID, err := scopeAt(req)
	if err != nil {
		return nil, err
	}
	itemID, err := convert.ID(req, "item_id")
	if err != nil {
		return nil, err
	}
	it, err := s.svc.Items.Get(ctx, user, sc, itemID, commitID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"item": convert.Item(*it)}, nil
}

func (s *Server) listItems(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, commitID, err := scopeAt(req)
	if err != nil {
		return nil, err
	}
	parent, err := convert.OptID(req, "parent_id")
	if err != nil {
		return nil, err
	}
	var items []service.Item
	if parent == nil {
		items, err = s.svc.Items.List(ctx, user, sc, commitID)
	} else {
		items, err = s.svc.Items.ListByParent(ctx, user, sc, *parent, commitID)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": convert.List(items, convert.Item)}, nil
}

func (s *Server) getItemHistory(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	itemID, err := convert.ID(req, "item_id")
	if err != nil {
		return nil, err
	}
	versions, err := s.svc.Items.History(ctx, user, sc, itemID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"versions": convert.List(versions, convert.Item)}, nil
}

func (s *Server) updateItemSlug(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, itemID, message, err := itemWrite(req)
	if err != nil {
		return nil, err
	}
	slug, err := convert.String(req, "slug")
	if err != nil {
		return nil, err
	}
	return committed(s.svc.Items.UpdateSlug(ctx, user, sc, itemID, slug, message))
}

func (s *Server) deleteItem(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, itemID, message, err := itemWrite(req)
	if err != nil {
		return nil, err
	}
	return committed(s.svc.Items.Delete(ctx, user, sc, itemID, message))
}

func (s *Server) setSecret(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, itemID, message, err := itemWrite(req)
	if err != nil {
		return nil, err
	}
	secret, err := convert.Secret(req, "secret_value")
	if err != nil {
		return nil, err
	}
	if secret == nil {
		_, err = convert.String(req, "secret_value")
		return nil, err
	}
	return committed(s.svc.Items.SetSecret(ctx, user, sc, itemID, *secret, message))
}

func (s *Server) deleteSecret(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, itemID, message, err := itemWrite(req)
	if err != nil {
		return nil, err
	}
	return committed(s.svc.Items.DeleteSecret(ctx, user, sc, itemID, message))
}

func (s *Server) applyUpdates(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	updates, err := convert.Updates(req)
	if err != nil {
		return nil, err
	}
	message, err := convert.OptString(req, "message")
	if err != nil {
		return nil, err
	}
	return committed(s.svc.Items.ApplyUpdates(ctx, user, sc, updates, message))
}

func (s *Server) importTree(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, err := convert.Scope(req)
	if err != nil {
		return nil, err
	}
	schema, err := convert.Object(req, "schema")
	if err != nil {
		return nil, err
	}
	values, err := convert.Object(req, "values")
	if err != nil {
		return nil, err
	}
	message, err := convert.OptString(req, "message")
	if err != nil {
		return nil, err
	}
	return committed(s.svc.Items.Import(ctx, user, sc, schema, values, message))
}

func (s *Server) getSnapshot(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, commitID, err := scopeAt(req)
	if err != nil {
		return nil, err
	}
	snap, err := s.svc.Items.Snapshot(ctx, user, sc, commitID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"snapshot": snap}, nil
}

func (s *Server) getSchema(ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error) {
	sc, commitID, err := scopeAt(req)
	if err != nil {
		return nil, err
	}
	schema, err := s.svc.Items.Schema(ctx, user, sc, commitID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"schema": schema}, nil
}
