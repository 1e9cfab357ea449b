package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/models"
)

// tokenCacheTTL bounds how long a verified token is trusted without re-checking its signature
const tokenCacheTTL = time.Minute

const (
	roleGroupPrefix = "role:"
	orgGroupPrefix  = "org:"
)

type actorKey struct{}

// ActorClaims are the JWT claims issued by the auth collaborator. userType is the legacy
// spelling of role.
type ActorClaims struct {
	Role           string `json:"role,omitempty"`
	UserType       string `json:"userType,omitempty"`
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and resolves them to an actor
type Authenticator struct {
	guardian auth.Authenticator
	secret   []byte
}

// NewAuthenticator sets up the go-guardian bearer strategy backed by a FIFO token cache
func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{
		guardian: auth.New(),
		secret:   []byte(secret),
	}
	cache := store.NewFIFO(context.Background(), tokenCacheTTL)
	a.guardian.EnableStrategy(bearer.CachedStrategyKey, bearer.New(a.verify, cache))
	return a
}

// Middleware rejects unauthenticated requests and stores the actor on the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := a.guardian.Authenticate(r)
		if err != nil {
			zap.S().Warnw("unauthorized", "url", r.URL.Path, "error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		actor := actorFromInfo(info)
		zap.S().Debugw("actor authenticated", "actorId", actor.ID, "role", actor.Role)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// QueryToken copies an access_token query parameter into the Authorization header.
// Browsers cannot set headers on websocket handshakes.
func QueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("access_token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) verify(_ context.Context, _ *http.Request, raw string) (auth.Info, error) {
	claims := &ActorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid token: missing subject")
	}

	role, ok := models.ParseRole(claims.Role)
	if !ok {
		if role, ok = models.ParseRole(claims.UserType); !ok {
			role = models.RoleUser
		}
	}
	groups := []string{roleGroupPrefix + string(role)}
	if claims.OrganizationID != "" {
		groups = append(groups, orgGroupPrefix+claims.OrganizationID)
	}
	return auth.NewDefaultUser(claims.Subject, claims.Subject, groups, nil), nil
}

func actorFromInfo(info auth.Info) models.Actor {
	actor := models.Actor{ID: info.ID(), Role: models.RoleUser}
	for _, g := range info.Groups() {
		switch {
		case strings.HasPrefix(g, roleGroupPrefix):
			actor.Role = models.Role(strings.TrimPrefix(g, roleGroupPrefix))
		case strings.HasPrefix(g, orgGroupPrefix):
			actor.OrganizationID = strings.TrimPrefix(g, orgGroupPrefix)
		}
	}
	return actor
}

// SignActorToken issues an HS256 token for actor. Used for local tooling and tests; production
// tokens come from the auth collaborator.
func SignActorToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Role:           string(actor.Role),
		OrganizationID: actor.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}
