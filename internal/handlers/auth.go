package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "luxe-session"

const minPasswordLength = 6

type ctxKey int

const userKey ctxKey = iota

type AuthHandler struct {
	Users    store.UserStore
	Sessions sessions.Store
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CurrentUser returns the signed-in user attached by LoadUser, or nil.
func CurrentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if len(c.Username) < 3 {
		respondError(w, http.StatusBadRequest, "Username must be at least 3 characters.")
		return
	}
	if len(c.Password) < minPasswordLength {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	user := &models.User{Username: c.Username, Password: string(hashed), Role: models.RoleUser}
	if err := h.Users.CreateUser(r.Context(), user); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		respondErr(w, r, err)
		return
	}
	slog.Info("User signed up", "user_id", user.ID)
	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeJSON(w, r, &c) {
		return
	}

	user, err := h.Users.GetUserByUsername(r.Context(), strings.TrimSpace(c.Username))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(c.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		slog.Error("Failed to save session", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}
	slog.Info("Login successful", "user_id", user.ID, "role", user.Role)
	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, _ := h.Sessions.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Options.Path = "/"
	return session.Save(r, w)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(r, sessionName)
	delete(session.Values, "user_id")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to clear session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me reports who is signed in. The CSRF token rides along for the next write.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	user := CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// LoadUser attaches the signed-in user to the request context. The role is read
// from the store on every request so a demotion applies immediately.
func (h *AuthHandler) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.Sessions.Get(r, sessionName)
		if err != nil {
			slog.Debug("Ignoring unreadable session", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		id, ok := session.Values["user_id"].(string)
		if !ok || id == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := h.Users.GetUserByID(r.Context(), id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("Failed to load session user", "user_id", id, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r) == nil {
			respondError(w, http.StatusUnauthorized, "You must be signed in.")
			return
		}
		next(w, r)
	}
}

// RequireAdmin lets admins through. Demo admins may only read.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		switch {
		case user == nil:
			respondError(w, http.StatusUnauthorized, "You must be signed in.")
			return
		case !user.CanViewAdmin():
			respondError(w, http.StatusForbidden, "Admin access required.")
			return
		case !user.CanManage() && r.Method != http.MethodGet && r.Method != http.MethodHead:
			slog.Warn("Demo admin attempted a change", "user_id", user.ID, "method", r.Method, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "Demo accounts can not make changes.")
			return
		}
		next(w, r)
	}
}
