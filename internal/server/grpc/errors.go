package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/watsh-io/backend/internal/errs"
)

func callerField(ctx context.Context) zap.Field {
	if id, ok := Caller(ctx); ok {
		return zap.Stringer("caller", id)
	}
	return zap.Skip()
}

// toStatus maps engine errors onto gRPC codes. Integrity failures and
// anything unclassified are logged; their text never reaches the caller.
func (s *Server) toStatus(ctx context.Context, method string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, errs.ErrIntegrity):
		s.log.Error("integrity violation", zap.String("method", method), callerField(ctx), zap.Error(err))
		return status.Error(codes.DataLoss, "stored data failed integrity checks")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errs.ErrArchivedProject),
		errors.Is(err, errs.ErrDefaultBranchDeletion),
		errors.Is(err, errs.ErrDefaultEnvironmentDeletion):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errs.ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		s.log.Error("unhandled error", zap.String("method", method), callerField(ctx), zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
}
