// Package auth signs users in with Google and issues the bearer session
// tokens the API expects.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"mmms/internal/core"
	"mmms/internal/log"
)

// Scopes requested at sign-in: the profile plus the spreadsheets the backend
// creates in the user's Drive.
var Scopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// DevUser is injected by the development bypass.
var DevUser = core.User{Email: "dev@test.com", Name: "Dev User", AccessToken: "dev-token"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	JWTSecret    string
	SessionTTL   time.Duration
	// Bypass authenticates every request as DevUser. Callers must only set
	// it outside production.
	Bypass bool
	// Endpoint and UserInfoEndpoint override Google for tests.
	Endpoint         *oauth2.Endpoint
	UserInfoEndpoint string
	Logger           *log.Logger
}

// Profile is the Google account of a signed-in user.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

type Service struct {
	oauth    *oauth2.Config
	secret   []byte
	ttl      time.Duration
	bypass   bool
	userinfo string
	logger   *log.Logger
	now      func() time.Time
}

func NewService(cfg Config) *Service {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		bypass:   cfg.Bypass,
		userinfo: cfg.UserInfoEndpoint,
		logger:   logger.WithComponent(log.ComponentAuth),
		now:      time.Now,
	}
}

// OAuthConfig exposes the client configuration for token sources.
func (s *Service) OAuthConfig() *oauth2.Config { return s.oauth }

// AuthURL returns the consent page URL. Offline access with a forced prompt
// makes Google return a refresh token on every sign-in.
func (s *Service) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and the user profile.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, Profile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, Profile{}, core.Invalid("code", "is required")
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, Profile{}, &core.AuthError{Reason: fmt.Sprintf("exchange authorization code: %v", err)}
	}
	profile, err := s.UserInfo(ctx, tok)
	if err != nil {
		return nil, Profile{}, err
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUser, profile.Email)
	return tok, profile, nil
}

// UserInfo fetches the Google profile the token belongs to.
func (s *Service) UserInfo(ctx context.Context, tok *oauth2.Token) (Profile, error) {
	opts := []option.ClientOption{option.WithTokenSource(s.oauth.TokenSource(ctx, tok))}
	if s.userinfo != "" {
		opts = append(opts, option.WithEndpoint(s.userinfo))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, &core.AuthError{Reason: fmt.Sprintf("fetch user profile: %v", err)}
	}
	if info.Email == "" {
		return Profile{}, &core.AuthError{Reason: "google account without email"}
	}
	return Profile{ID: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// Refresh obtains a new access token from a refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, core.Invalid("refreshToken", "is required")
	}
	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, &core.AuthError{Reason: fmt.Sprintf("refresh token: %v", err)}
	}
	return tok, nil
}

type claims struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccessToken string `json:"accessToken"`
	jwt.RegisteredClaims
}

// Issue signs a session for user that expires with its Google access token,
// capped by the session TTL.
func (s *Service) Issue(user core.User, accessExpiry time.Time) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	if !accessExpiry.IsZero() && accessExpiry.Before(exp) {
		exp = accessExpiry
	}
	c := claims{
		Email:       user.Email,
		Name:        user.Name,
		AccessToken: user.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Verify checks a session token and returns its user.
func (s *Service) Verify(token string) (core.User, error) {
	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return s.secret, nil })
	if err != nil || !parsed.Valid {
		return core.User{}, &core.AuthError{Reason: "invalid or expired token"}
	}
	if c.Email == "" {
		return core.User{}, &core.AuthError{Reason: "token without email"}
	}
	return core.User{Email: c.Email, Name: c.Name, AccessToken: c.AccessToken}, nil
}

type contextKey struct{}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user of a request.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(contextKey{}).(core.User)
	return u, ok
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware authenticates requests. A missing token fails with a missing
// AuthError, a bad one with a plain AuthError; fail writes the response.
func (s *Service) Middleware(fail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.bypass {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), DevUser)))
				return
			}
			token := BearerToken(r)
			if token == "" {
				fail(w, r, &core.AuthError{Reason: "access token required", Missing: true})
				return
			}
			user, err := s.Verify(token)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
