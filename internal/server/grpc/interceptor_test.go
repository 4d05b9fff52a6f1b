package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestInterceptor_PublicMethodSkipsToken(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), Services{})
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod("Login")}

	called := false
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), Services{})
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod("GetProfile")}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
}

func TestInterceptor_PutsTokenInfoInContext(t *testing.T) {
	clock := common.NewManualClock(t0)
	svc := newServices(clock)
	s := NewGRPCServer("", logging.Nop(), svc)
	ctx := context.Background()

	u, err := svc.Identity.CreateUser(ctx, "alice", "alice@example.com", "password1", services.CreateUserOptions{})
	require.NoError(t, err)
	sess, err := svc.Sessions.CreateSession(ctx, u.ID, models.ClientInfo{})
	require.NoError(t, err)
	token, err := svc.Sessions.IssueToken(u.ID, sess.ID, models.TokenAccess)
	require.NoError(t, err)

	in := metadata.NewIncomingContext(ctx, metadata.New(map[string]string{common.AccessTokenHeaderName: token}))
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod("GetProfile")}
	_, err = s.accessTokenInterceptor(in, nil, info, func(ctx context.Context, req any) (any, error) {
		ti, err := tokenInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, u.ID, ti.UserID)
		assert.Equal(t, sess.ID, ti.SessionID)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = tokenInfo(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
