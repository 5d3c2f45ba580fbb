package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/types"
)

// maxBodyBytes bounds request bodies. Scenarios with explicit hourly series
// for several buildings run to a few megabytes.
const maxBodyBytes = 16 << 20

// user is the authenticated caller of a request.
type user struct {
	ID    string
	Email string
	Admin bool
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		allowNoLogin := r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/auth/status" || r.URL.Path == "/api/auth/logout"

		// extract SiteID
		var siteID string
		if r.Method == http.MethodGet {
			siteID = r.URL.Query().Get("siteID")
		} else if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to read request body", slog.Any("error", err))
				// since we failed to read, don't return JSON error
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}
			// restore body for next handler
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			if len(bodyBytes) > 0 {
				var justSiteID struct {
					SiteID string `json:"siteID"`
				}
				if err := json.Unmarshal(bodyBytes, &justSiteID); err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to unmarshal request body", slog.Any("error", err))
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				siteID = justSiteID.SiteID
			}
		}

		var u user
		if s.bypassAuth {
			u = user{Admin: true}
		} else {
			token, err := requestToken(r)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "invalid auth header", slog.Any("error", err))
				writeJSONError(w, "invalid auth header", http.StatusBadRequest)
				return
			}
			if token != "" {
				email, subject, _, err := s.authenticateToken(ctx, token)
				if err != nil {
					log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
					s.clearCookie(w)
					writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
					return
				}
				u = user{ID: subject, Email: email, Admin: s.isAdmin(email)}
			} else if !allowNoLogin {
				log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if siteID == "" {
			if s.singleSite || s.bypassAuth {
				siteID = types.SiteIDNone
			} else if !allowNoLogin {
				log.Ctx(ctx).WarnContext(ctx, "siteID required", slog.String("userID", u.ID))
				writeJSONError(w, "siteID required", http.StatusBadRequest)
				return
			}
		}

		if u.ID != "" {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authUserID", u.ID)))
		}
		if siteID != "" {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authSiteID", siteID)))
		}
		log.Ctx(ctx).DebugContext(ctx, "authenticated request", slog.String("email", u.Email), slog.Bool("admin", u.Admin))

		ctx = context.WithValue(ctx, userContextKey, u)
		ctx = context.WithValue(ctx, siteIDContextKey, siteID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestToken returns the bearer token or, failing that, the auth cookie.
// An empty token means the request is anonymous.
func requestToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", errors.New("authorization header is not a bearer token")
		}
		return strings.TrimPrefix(h, "Bearer "), nil
	}
	cookie, err := r.Cookie(authTokenCookie)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		return "", err
	}
	return cookie.Value, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	email, subject, expires, err := s.authenticateToken(r.Context(), req.Token)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}
	if email == "" {
		log.Ctx(r.Context()).WarnContext(r.Context(), "invalid email in id token")
		writeJSONError(w, "invalid oidc claims", http.StatusUnauthorized)
		return
	}

	log.Ctx(r.Context()).InfoContext(r.Context(), "login token validated successfully", slog.String("email", email), slog.String("subject", subject))

	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

type authStatusResponse struct {
	LoggedIn     bool              `json:"loggedIn"`
	Email        string            `json:"email"`
	Admin        bool              `json:"admin"`
	AuthRequired bool              `json:"authRequired"`
	ClientIDs    map[string]string `json:"clientIDs"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	u := s.getUser(r)
	writeJSON(w, authStatusResponse{
		LoggedIn:     u.ID != "",
		Email:        u.Email,
		Admin:        u.Admin,
		AuthRequired: !s.bypassAuth,
		ClientIDs:    s.oidcAudiences,
	}, http.StatusOK)
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, string, time.Time, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		idToken, err := verifier(ctx, token)
		if err == nil {
			var claims struct {
				Email string `json:"email"`
			}
			err = idToken.Claims(&claims)
			if err == nil {
				return claims.Email, idToken.Subject, idToken.Expiry, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return "", "", time.Time{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return "", "", time.Time{}, errs[0]
	}
	return "", "", time.Time{}, errors.New("no valid audiences configured or token invalid")
}
