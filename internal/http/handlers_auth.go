package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"mmms/internal/auth"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/services"
)

type tokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
}

type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Tokens    tokensResponse `json:"tokens"`
	User      *auth.Profile  `json:"user,omitempty"`
}

type codeRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func tokensOf(tok *oauth2.Token) tokensResponse {
	out := tokensResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return out
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": s.auth.AuthURL(uuid.NewString())})
}

// signIn exchanges code, issues a session and provisions the user's
// containers. Provisioning failures are logged, sign-in still succeeds.
func (s *Server) signIn(ctx context.Context, code string) (sessionResponse, error) {
	tok, profile, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return sessionResponse{}, err
	}
	user := core.User{Email: profile.Email, Name: profile.Name, AccessToken: tok.AccessToken}
	session, exp, err := s.auth.Issue(user, tok.Expiry)
	if err != nil {
		return sessionResponse{}, err
	}
	atomic.AddInt64(&s.appMetrics.logins, 1)

	if gw, err := s.provider.Gateway(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "Provisioning skipped", log.FieldUser, user.Email, log.FieldError, err)
	} else if err := services.NewWorkspace(user, gw, s.svcDeps).Provision(ctx); err != nil {
		s.logger.WarnContext(ctx, "Provisioning incomplete", log.FieldUser, user.Email, log.FieldError, err)
	}

	return sessionResponse{Token: session, ExpiresAt: exp, Tokens: tokensOf(tok), User: &profile}, nil
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.signIn(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAuthRedirect finishes the browser flow by redirecting to the
// frontend with the session token and the user.
func (s *Server) handleAuthRedirect(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimRight(s.cfg.FrontendURL, "/") + "/auth/callback"
	q := url.Values{}

	if e := r.URL.Query().Get("error"); e != "" {
		q.Set("error", e)
		http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
		return
	}

	resp, err := s.signIn(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		status, msg, errType := classify(err)
		s.logger.WarnContext(r.Context(), "Sign-in failed",
			log.FieldError, err.Error(), log.FieldErrorType, errType, log.FieldStatusCode, status)
		q.Set("error", msg)
		http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
		return
	}

	user, _ := json.Marshal(resp.User)
	q.Set("token", resp.Token)
	q.Set("user", string(user))
	http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
}

func (s *Server) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.auth.UserInfo(r.Context(), tok)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, exp, err := s.auth.Issue(core.User{Email: profile.Email, Name: profile.Name, AccessToken: tok.AccessToken}, tok.Expiry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = req.RefreshToken
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: session, ExpiresAt: exp, Tokens: tokensOf(tok)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, &core.AuthError{Reason: "no authenticated user", Missing: true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.User{"user": user})
}
