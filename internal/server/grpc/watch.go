package grpcserver

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/convert"
)

// watch streams the branch snapshot, then one frame per commit. The
// subscription is taken before the first read so no commit falls between.
func (s *Server) watch(req *structpb.Struct, stream grpc.ServerStream) error {
	const name = "Watch"
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "watch is disabled")
	}
	ctx := stream.Context()
	user, err := s.userIDFromCtx(ctx)
	if err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	ctx = withCaller(ctx, user)
	sc, err := convert.Scope(req)
	if err != nil {
		return s.toStatus(ctx, name, err)
	}

	events, cancel := s.hub.Subscribe(sc)
	defer cancel()

	snap, err := s.svc.Items.Snapshot(ctx, user, sc, nil)
	if err != nil {
		return s.toStatus(ctx, name, err)
	}
	if err := send(stream, map[string]any{"snapshot": snap}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// Re-reading checks membership again, so a removed member stops here.
			snap, err := s.svc.Items.Snapshot(ctx, user, sc, &ev.Commit)
			if err != nil {
				return s.toStatus(ctx, name, err)
			}
			if err := send(stream, map[string]any{"commit": convert.Event(ev), "snapshot": snap}); err != nil {
				return err
			}
		}
	}
}

func send(stream grpc.ServerStream, frame map[string]any) error {
	msg, err := structpb.NewStruct(frame)
	if err != nil {
		return status.Error(codes.Internal, "internal")
	}
	return stream.SendMsg(msg)
}
