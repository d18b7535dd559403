// Package grpcserver exposes the watsh engine over gRPC.
package grpcserver

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/limiter"
	"github.com/watsh-io/backend/internal/notify"
	"github.com/watsh-io/backend/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	svc       *service.Services
	hub       *notify.Hub
	limit     limiter.Limiter
	signKey   []byte
	log       *zap.Logger
	now       func() time.Time
	tokenTTL  time.Duration
	inviteTTL time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHub enables Watch on top of h.
func WithHub(h *notify.Hub) Option { return func(s *Server) { s.hub = h } }

// WithLimiter throttles public methods that keep failing from one peer.
func WithLimiter(l limiter.Limiter) Option { return func(s *Server) { s.limit = l } }

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithClock overrides the clock used to issue and check tokens.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithTokenTTL sets access token lifetime.
func WithTokenTTL(d time.Duration) Option { return func(s *Server) { s.tokenTTL = d } }

// WithInvitationTTL sets invitation token lifetime.
func WithInvitationTTL(d time.Duration) Option { return func(s *Server) { s.inviteTTL = d } }

// New constructs a gRPC server with injected services.
func New(svc *service.Services, signKey []byte, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		signKey:   signKey,
		log:       zap.NewNop(),
		now:       time.Now,
		tokenTTL:  24 * time.Hour,
		inviteTTL: 7 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register attaches the service to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(ServiceDesc(), s)
}

type method struct {
	// public methods run without a bearer token; user is uuid.Nil.
	public bool
	call   func(s *Server, ctx context.Context, user uuid.UUID, req *structpb.Struct) (map[string]any, error)
}

var methods = map[string]method{
	"CreateUser":      {public: true, call: (*Server).createUser},
	"GetMe":           {call: (*Server).getMe},
	"UpdateEmail":     {call: (*Server).updateEmail},
	"DeleteMe":        {call: (*Server).deleteMe},
	"GetUserSnapshot": {call: (*Server).getUserSnapshot},

	"CreateProject":            {call: (*Server).createProject},
	"GetProject":               {call: (*Server).getProject},
	"ListProjects":             {call: (*Server).listProjects},
	"UpdateProjectSlug":        {call: (*Server).updateProjectSlug},
	"UpdateProjectDescription": {call: (*Server).updateProjectDescription},
	"ArchiveProject":           {call: (*Server).archiveProject},
	"UnarchiveProject":         {call: (*Server).unarchiveProject},
	"DeleteProject":            {call: (*Server).deleteProject},

	"ListMembers":       {call: (*Server).listMembers},
	"TransferOwnership": {call: (*Server).transferOwnership},
	"RemoveMember":      {call: (*Server).removeMember},
	"InviteMember":      {call: (*Server).inviteMember},
	"AcceptInvitation":  {public: true, call: (*Server).acceptInvitation},

	"CreateEnvironment":     {call: (*Server).createEnvironment},
	"GetEnvironment":        {call: (*Server).getEnvironment},
	"ListEnvironments":      {call: (*Server).listEnvironments},
	"UpdateEnvironmentSlug": {call: (*Server).updateEnvironmentSlug},
	"SetDefaultEnvironment": {call: (*Server).setDefaultEnvironment},
	"DeleteEnvironment":     {call: (*Server).deleteEnvironment},

	"CreateBranch":     {call: (*Server).createBranch},
	"GetBranch":        {call: (*Server).getBranch},
	"ListBranches":     {call: (*Server).listBranches},
	"UpdateBranchSlug": {call: (*Server).updateBranchSlug},
	"SetDefaultBranch": {call: (*Server).setDefaultBranch},
	"DeleteBranch":     {call: (*Server).deleteBranch},

	"ListCommits": {call: (*Server).listCommits},
	"GetCommit":   {call: (*Server).getCommit},

	"CreateItem":     {call: (*Server).createItem},
	"GetItem":        {call: (*Server).getItem},
	"ListItems":      {call: (*Server).listItems},
	"GetItemHistory": {call: (*Server).getItemHistory},
	"UpdateItemSlug": {call: (*Server).updateItemSlug},
	"DeleteItem":     {call: (*Server).deleteItem},
	"SetSecret":      {call: (*Server).setSecret},
	"DeleteSecret":   {call: (*Server).deleteSecret},
	"ApplyUpdates":   {call: (*Server).applyUpdates},
	"Import":         {call: (*Server).importTree},
	"GetSnapshot":    {call: (*Server).getSnapshot},
	"GetSchema":      {call: (*Server).getSchema},
}

func (s *Server) call(ctx context.Context, name string, req *structpb.Struct) (*structpb.Struct, error) {
	m, ok := methods[name]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", name)
	}

	var user uuid.UUID
	if m.public && s.limit != nil {
		return s.limited(ctx, name, m, req)
	}
	if !m.public {
		id, err := s.userIDFromCtx(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		user = id
		ctx = withCaller(ctx, id)
	}

	return s.invoke(ctx, name, m, user, req)
}

func (s *Server) invoke(ctx context.Context, name string, m method, user uuid.UUID, req *structpb.Struct) (*structpb.Struct, error) {
	out, err := m.call(s, ctx, user, req)
	if err != nil {
		return nil, s.toStatus(ctx, name, err)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		s.log.Error("encode response", zap.String("method", name), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal")
	}
	return resp, nil
}
