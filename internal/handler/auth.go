package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/middleware"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

const sessionMaxAge = 30 * 24 * 60 * 60

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{userStore: us, sessionStore: ss, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// Register handles POST /api/register. The requested role is honoured only
// for the first account; later accounts are always plain users.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	role := model.RoleUser
	if req.Role == model.RoleAdmin {
		n, err := h.userStore.Count()
		if err != nil {
			h.logger.Error("count users", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if n == 0 {
			role = model.RoleAdmin
		}
	}

	user, err := h.userStore.Create(req.Username, string(hash), role)
	if errors.Is(err, store.ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "username already exists")
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": user})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userStore.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// WhoAmI handles GET /whoami.
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"user_id":  ac.UserID,
		"username": ac.Username,
		"role":     ac.Role,
	})
}
