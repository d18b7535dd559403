package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/limiter"
)

// clientIP strips the port from the peer address; unix and bufconn peers
// collapse to their raw address.
func clientIP(ctx context.Context) string {
	addr := peerAddr(ctx)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func blocked(retry time.Duration) error {
	return status.Errorf(codes.ResourceExhausted, "too many failed attempts, retry in %s", retry.Round(time.Second))
}

// limited runs a public method behind the limiter. Limiter outages never
// block callers.
func (s *Server) limited(ctx context.Context, name string, m method, req *structpb.Struct) (*structpb.Struct, error) {
	ip := limiter.HashIP(clientIP(ctx))

	ok, retry, err := s.limit.Allow(ctx, name, ip)
	switch {
	case err != nil:
		s.log.Warn("limiter allow", zap.String("method", name), zap.Error(err))
	case !ok:
		return nil, blocked(retry)
	}

	resp, callErr := s.invoke(ctx, name, m, uuid.Nil, req)
	if callErr == nil {
		if err := s.limit.Success(ctx, name, ip); err != nil {
			s.log.Warn("limiter success", zap.String("method", name), zap.Error(err))
		}
		return resp, nil
	}
	if status.Code(callErr) == codes.Internal {
		return nil, callErr
	}
	if _, _, err := s.limit.Failure(ctx, name, ip); err != nil {
		s.log.Warn("limiter failure", zap.String("method", name), zap.Error(err))
	}
	return nil, callErr
}
