package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeByError = []struct {
	err  error
	code codes.Code
}{
	{common.ErrDuplicateIdentity, codes.AlreadyExists},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrSessionInactive, codes.Unauthenticated},
	{common.ErrAccountDisabled, codes.PermissionDenied},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrProfileNotFound, codes.NotFound},
	{common.ErrPreferencesNotFound, codes.NotFound},
	{common.ErrSessionNotFound, codes.NotFound},
	{common.ErrValidation, codes.InvalidArgument},
}

// toStatus maps a service error to a gRPC status. Unknown errors are
// logged and reported as Internal without their text.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range codeByError {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
