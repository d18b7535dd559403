package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/convert"
	"github.com/watsh-io/backend/internal/crypto"
	"github.com/watsh-io/backend/internal/limiter"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/notify"
	"github.com/watsh-io/backend/internal/repository/memory"
	"github.com/watsh-io/backend/internal/service"
)

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, srv *Server) (*grpc.ClientConn, func()) {
	t.Helper()
	log := zaptest.NewLogger(t)
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	srv.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return cc, stop
}

type harness struct {
	cl  *Client
	hub *notify.Hub
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	hub := notify.NewHub(8)
	svc := service.New(memory.New(), crypto.NewCodec("test-password"), service.WithNotifier(hub))
	srv := New(svc, testKey, append([]Option{WithHub(hub), WithLogger(zaptest.NewLogger(t))}, opts...)...)
	cc, stop := startBufGRPC(t, srv)
	t.Cleanup(stop)
	return &harness{cl: NewClient(cc), hub: hub}
}

// signup creates a user and returns an authenticated context plus the
// scope of the default branch of the sample project.
func (h *harness) signup(t *testing.T, email string) (context.Context, map[string]any) {
	t.Helper()
	resp, err := h.cl.Call(context.Background(), "CreateUser", map[string]any{"email": email})
	require.NoError(t, err)
	ctx := WithToken(context.Background(), resp["access_token"].(string))

	resp, err = h.cl.Call(ctx, "ListProjects", nil)
	require.NoError(t, err)
	projects := resp["projects"].([]any)
	require.Len(t, projects, 1)
	projectID := projects[0].(map[string]any)["id"]

	resp, err = h.cl.Call(ctx, "ListEnvironments", map[string]any{"project_id": projectID})
	require.NoError(t, err)
	var envID any
	for _, e := range resp["environments"].([]any) {
		if env := e.(map[string]any); env["default"] == true {
			envID = env["id"]
		}
	}
	require.NotNil(t, envID)

	resp, err = h.cl.Call(ctx, "ListBranches", map[string]any{"project_id": projectID, "environment_id": envID})
	require.NoError(t, err)
	branches := resp["branches"].([]any)
	require.Len(t, branches, 1)

	return ctx, map[string]any{
		"project_id":     projectID,
		"environment_id": envID,
		"branch_id":      branches[0].(map[string]any)["id"],
	}
}

func scopeOf(t *testing.T, sc map[string]any) model.Scope {
	t.Helper()
	req, err := structpb.NewStruct(sc)
	require.NoError(t, err)
	out, err := convert.Scope(req)
	require.NoError(t, err)
	return out
}

func with(sc map[string]any, kv ...any) map[string]any {
	out := make(map[string]any, len(sc)+len(kv)/2)
	for k, v := range sc {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func TestServer_E2E_ItemFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")

	me, err := h.cl.Call(ctx, "GetMe", nil)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", me["user"].(map[string]any)["email"])

	resp, err := h.cl.Call(ctx, "CreateItem", with(sc, "type", "object", "slug", "db", "message", "add db"))
	require.NoError(t, err)
	dbID := resp["item_id"].(string)

	resp, err = h.cl.Call(ctx, "CreateItem", with(sc, "parent_id", dbID, "type", "integer", "slug", "port", "secret_value", 5432))
	require.NoError(t, err)
	portID := resp["item_id"].(string)
	firstCommit := resp["commit"].(map[string]any)["id"]

	_, err = h.cl.Call(ctx, "SetSecret", with(sc, "item_id", portID, "secret_value", "6543"))
	require.NoError(t, err)

	snap, err := h.cl.Call(ctx, "GetSnapshot", sc)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"db": map[string]any{"port": float64(6543)}}, snap["snapshot"])

	old, err := h.cl.Call(ctx, "GetSnapshot", with(sc, "commit_id", firstCommit))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"db": map[string]any{"port": float64(5432)}}, old["snapshot"])

	items, err := h.cl.Call(ctx, "ListItems", with(sc, "parent_id", dbID))
	require.NoError(t, err)
	require.Len(t, items["items"], 1)

	hist, err := h.cl.Call(ctx, "GetItemHistory", with(sc, "item_id", portID))
	require.NoError(t, err)
	require.Len(t, hist["versions"], 2)

	commits, err := h.cl.Call(ctx, "ListCommits", sc)
	require.NoError(t, err)
	require.Len(t, commits["commits"], 3)
	require.Equal(t, "add db", commits["commits"].([]any)[0].(map[string]any)["message"])

	schema, err := h.cl.Call(ctx, "GetSchema", sc)
	require.NoError(t, err)
	props := schema["schema"].(map[string]any)["properties"].(map[string]any)
	require.Equal(t, "object", props["db"].(map[string]any)["type"])
}

func TestServer_E2E_ApplyUpdatesAndImport(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")

	objID, leafID := "0190b3c8-0000-7000-8000-000000000001", "0190b3c8-0000-7000-8000-000000000002"
	_, err := h.cl.Call(ctx, "ApplyUpdates", with(sc, "updates", []any{
		map[string]any{"item_id": leafID, "parent_id": objID, "type": "boolean", "active": true, "slug": "on", "secret_value": true, "secret_active": true},
		map[string]any{"item_id": objID, "type": "object", "active": true, "slug": "flags"},
	}))
	require.NoError(t, err)

	snap, err := h.cl.Call(ctx, "GetSnapshot", sc)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"flags": map[string]any{"on": true}}, snap["snapshot"])

	_, err = h.cl.Call(ctx, "Import", with(sc,
		"schema", map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
		},
		"values", map[string]any{"name": "watsh"},
	))
	require.NoError(t, err)

	snap, err = h.cl.Call(ctx, "GetSnapshot", sc)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "watsh"}, snap["snapshot"])
}

func TestServer_E2E_Errors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")
	other, _ := h.signup(t, "mallory@example.com")

	tests := []struct {
		name   string
		ctx    context.Context
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"no token", context.Background(), "GetMe", nil, codes.Unauthenticated},
		{"bad token", WithToken(context.Background(), "nope"), "GetMe", nil, codes.Unauthenticated},
		{"unknown method", ctx, "Nope", nil, codes.Unimplemented},
		{"missing field", ctx, "CreateProject", nil, codes.InvalidArgument},
		{"bad id", ctx, "GetProject", map[string]any{"project_id": "x"}, codes.InvalidArgument},
		{"slug taken", ctx, "CreateProject", map[string]any{"slug": "example-project"}, codes.AlreadyExists},
		{"not a member", other, "GetSnapshot", sc, codes.PermissionDenied},
		{"unknown item", ctx, "GetItem", with(sc, "item_id", "0190b3c8-0000-7000-8000-00000000000f"), codes.NotFound},
		{"default branch", ctx, "DeleteBranch", sc, codes.FailedPrecondition},
		{"bad secret", ctx, "CreateItem", with(sc, "type", "integer", "slug", "n", "secret_value", "abc"), codes.InvalidArgument},
		{"set secret without value", ctx, "SetSecret", with(sc, "item_id", "0190b3c8-0000-7000-8000-00000000000f"), codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.cl.Call(tt.ctx, tt.method, tt.req)
			if status.Code(err) != tt.want {
				t.Fatalf("want %s, got %v", tt.want, err)
			}
		})
	}
}

func TestServer_E2E_ArchivedProject(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")

	_, err := h.cl.Call(ctx, "ArchiveProject", map[string]any{"project_id": sc["project_id"]})
	require.NoError(t, err)

	_, err = h.cl.Call(ctx, "CreateItem", with(sc, "type", "string", "slug", "k", "secret_value", "v"))
	require.Equal(t, codes.FailedPrecondition, status.Code(err), "got %v", err)

	// reads still work
	_, err = h.cl.Call(ctx, "GetSnapshot", sc)
	require.NoError(t, err)

	_, err = h.cl.Call(ctx, "UnarchiveProject", map[string]any{"project_id": sc["project_id"]})
	require.NoError(t, err)
	_, err = h.cl.Call(ctx, "CreateItem", with(sc, "type", "string", "slug", "k", "secret_value", "v"))
	require.NoError(t, err)
}

func TestServer_E2E_Invitation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")

	resp, err := h.cl.Call(ctx, "InviteMember", map[string]any{"project_id": sc["project_id"], "email": "bob@example.com"})
	require.NoError(t, err)
	invite := resp["invitation_token"].(string)

	// an invitation is not a bearer token
	_, err = h.cl.Call(WithToken(context.Background(), invite), "GetMe", nil)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err = h.cl.Call(context.Background(), "AcceptInvitation", map[string]any{"invitation_token": invite})
	require.NoError(t, err)
	require.Equal(t, sc["project_id"], resp["project_id"])
	bob := WithToken(context.Background(), resp["access_token"].(string))

	projects, err := h.cl.Call(bob, "ListProjects", nil)
	require.NoError(t, err)
	require.Len(t, projects["projects"], 1)

	_, err = h.cl.Call(bob, "GetSnapshot", sc)
	require.NoError(t, err)

	members, err := h.cl.Call(ctx, "ListMembers", map[string]any{"project_id": sc["project_id"]})
	require.NoError(t, err)
	require.Len(t, members["members"], 2)

	// only the owner may remove
	bobID := resp["user"].(map[string]any)["id"]
	_, err = h.cl.Call(bob, "DeleteProject", map[string]any{"project_id": sc["project_id"]})
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.cl.Call(ctx, "RemoveMember", map[string]any{"project_id": sc["project_id"], "user_id": bobID})
	require.NoError(t, err)
	_, err = h.cl.Call(bob, "GetSnapshot", sc)
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.cl.Call(context.Background(), "AcceptInvitation", map[string]any{"invitation_token": "garbage"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_Watch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, sc := h.signup(t, "alice@example.com")

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stream, err := h.cl.Watch(wctx, sc)
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, first["snapshot"])
	require.NotContains(t, first, "commit")

	_, err = h.cl.Call(ctx, "CreateItem", with(sc, "type", "string", "slug", "token", "secret_value", "s3cr3t", "message", "hello"))
	require.NoError(t, err)

	next, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"token": "s3cr3t"}, next["snapshot"])
	commit := next["commit"].(map[string]any)
	require.Equal(t, "hello", commit["message"])
	require.Equal(t, float64(1), commit["rows"])
}

func TestServer_WatchDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithHub(nil))
	ctx, sc := h.signup(t, "alice@example.com")

	stream, err := h.cl.Watch(ctx, sc)
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestServer_WatchRequiresMembership(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, sc := h.signup(t, "alice@example.com")
	other, _ := h.signup(t, "mallory@example.com")

	stream, err := h.cl.Watch(other, sc)
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Equal(t, codes.PermissionDenied, status.Code(err))
	require.Eventually(t, func() bool {
		return h.hub.Subscribers(scopeOf(t, sc)) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServer_LimiterBlocksRepeatedFailures(t *testing.T) {
	lim := limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	h := newHarness(t, WithLimiter(lim))
	bad := map[string]any{"invitation_token": "garbage"}

	for i := 0; i < 2; i++ {
		_, err := h.cl.Call(context.Background(), "AcceptInvitation", bad)
		require.Equal(t, codes.InvalidArgument, status.Code(err), "attempt %d", i)
	}
	_, err := h.cl.Call(context.Background(), "AcceptInvitation", bad)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	// the lockout is per method
	_, err = h.cl.Call(context.Background(), "CreateUser", map[string]any{"email": "limited@example.com"})
	require.NoError(t, err)
}
