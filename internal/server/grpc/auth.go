package grpcserver

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

const (
	leeway             = 30 * time.Second
	invitationAudience = "watsh-invitation"
)

// invitationClaims travel in the token handed out by InviteMember.
type invitationClaims struct {
	Project string `json:"project"`
	jwt.RegisteredClaims
}

type callerKey struct{}

func withCaller(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// Caller returns the user a handler is running for. Public methods have none.
func Caller(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerKey{}).(uuid.UUID)
	return id, ok
}

func (s *Server) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return s.signKey, nil
}

// userIDFromCtx: extract "authorization: Bearer <JWT>", verify HS256, return sub as UUID.
func (s *Server) userIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, s.keyFunc,
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("invalid or expired token")
	}
	if slices.Contains(claims.Audience, invitationAudience) {
		return uuid.Nil, errors.New("invitation tokens cannot authenticate")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// issueAccessToken signs a bearer token for userID.
func (s *Server) issueAccessToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// issueInvitation signs a token that lets email join projectID.
func (s *Server) issueInvitation(projectID uuid.UUID, email string) (string, error) {
	now := s.now()
	claims := invitationClaims{
		Project: projectID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Audience:  jwt.ClaimStrings{invitationAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.inviteTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// parseInvitation returns the project and email an invitation was issued for.
func (s *Server) parseInvitation(tok string) (uuid.UUID, string, error) {
	var claims invitationClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, s.keyFunc,
		jwt.WithAudience(invitationAudience),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, "", errors.New("invalid invitation")
	}
	projectID, err := uuid.FromString(claims.Project)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid invitation project")
	}
	return projectID, claims.Subject, nil
}
