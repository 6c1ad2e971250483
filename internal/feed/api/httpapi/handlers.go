// Package httpapi adapts the feed operation surface to JSON over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/compose"
	"github.com/aurasocial/aura/internal/feed/events"
	"github.com/aurasocial/aura/internal/feed/identity"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/post"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "aura_session"

// Service defines the feed operations consumed by the HTTP adapter.
type Service interface {
	Register(ctx context.Context, input identity.RegisterInput) (account.Account, string, error)
	Authenticate(ctx context.Context, username, credential string) (account.Account, string, error)
	Logout(ctx context.Context, token string) error
	CurrentAccount(ctx context.Context, token string) (account.Account, error)
	UpdateProfile(ctx context.Context, update identity.ProfileUpdate, viewer *account.Account) (account.Account, error)
	ListFeed(ctx context.Context, viewer *account.Account) ([]compose.Entry, error)
	ListProfilePosts(ctx context.Context, username string, viewer *account.Account) (account.Account, []compose.Entry, error)
	CreatePost(ctx context.Context, content string, viewer *account.Account) (post.Post, error)
	React(ctx context.Context, postID, kind string, viewer *account.Account) (map[string]int64, error)
	TogglePostApproval(ctx context.Context, postID string, caller *account.Account) (post.Post, error)
	DeletePost(ctx context.Context, postID string, caller *account.Account) error
	ToggleAccountActive(ctx context.Context, username string, caller *account.Account) (account.Account, error)
	Stats(ctx context.Context, caller *account.Account) (moderation.Stats, error)
	ListAccounts(ctx context.Context, caller *account.Account) ([]account.Account, error)
	ListPostsIncludingPending(ctx context.Context, caller *account.Account) ([]compose.Entry, error)
	Hub() *events.Hub
}

// Handler serves the JSON API.
type Handler struct {
	service Service
}

// RegisterRoutes wires API routes into the provided mux.
func RegisterRoutes(mux *http.ServeMux, service Service) {
	if mux == nil || service == nil {
		return
	}
	h := &Handler{service: service}

	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/login", h.handleLogin)
	mux.HandleFunc("/api/logout", h.handleLogout)
	mux.HandleFunc("/api/me", h.handleMe)
	mux.HandleFunc("/api/feed", h.handleFeed)
	mux.HandleFunc("/api/profile/", h.handleProfilePath)
	mux.HandleFunc("/api/posts", h.handlePosts)
	mux.HandleFunc("/api/posts/", h.handlePostPath)
	mux.HandleFunc("/api/stats", h.handleStats)
	mux.HandleFunc("/api/accounts", h.handleAccounts)
	mux.HandleFunc("/api/accounts/", h.handleAccountPath)
	mux.HandleFunc("/api/stream", h.handleStream)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type accountPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio,omitempty"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	JoinedAt    string `json:"joined_at"`
}

type postPayload struct {
	ID             string           `json:"id"`
	Content        string           `json:"content"`
	CreatedAt      string           `json:"created_at"`
	Approved       bool             `json:"approved"`
	Reactions      map[string]int64 `json:"reactions"`
	AuthorUsername string           `json:"author_username,omitempty"`
	AuthorName     string           `json:"author_name,omitempty"`
	AuthorAvatar   string           `json:"author_avatar,omitempty"`
}

func encodeAccount(acct account.Account) accountPayload {
	return accountPayload{
		ID:          acct.ID,
		Username:    acct.Username,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Avatar:      acct.Avatar,
		Bio:         acct.Bio,
		Role:        string(acct.Role),
		Active:      acct.Active,
		JoinedAt:    acct.JoinedAt.UTC().Format(time.RFC3339),
	}
}

func encodeEntry(entry compose.Entry) postPayload {
	payload := encodePost(entry.Post)
	payload.AuthorUsername = entry.AuthorUsername
	payload.AuthorName = entry.AuthorName
	payload.AuthorAvatar = entry.AuthorAvatar
	return payload
}

func encodePost(p post.Post) postPayload {
	reactions := p.CloneReactions()
	if reactions == nil {
		reactions = map[string]int64{}
	}
	return postPayload{
		ID:        p.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		Approved:  p.Approved,
		Reactions: reactions,
	}
}

func encodeEntries(entries []compose.Entry) []postPayload {
	payloads := make([]postPayload, len(entries))
	for i, entry := range entries {
		payloads[i] = encodeEntry(entry)
	}
	return payloads
}

// sessionToken extracts the token from the Authorization header or the
// session cookie. The header wins when both are present.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// viewer resolves the request's session token to an account. Requests
// without a resolvable session proceed anonymously.
func (h *Handler) viewer(r *http.Request) *account.Account {
	token := sessionToken(r)
	if token == "" {
		return nil
	}
	acct, err := h.service.CurrentAccount(r.Context(), token)
	if err != nil {
		return nil
	}
	return &acct
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	message := "internal error"
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	writeJSON(w, code.HTTPStatus(), map[string]string{
		"code":  string(code),
		"error": message,
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid JSON body"))
		return
	}

	acct, token, err := h.service.Register(r.Context(), identity.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Credential:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"account": encodeAccount(acct),
		"token":   token,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid JSON body"))
		return
	}

	acct, token, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": encodeAccount(acct),
		"token":   token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.service.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, err)
		return
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe serves GET /api/me (current account) and PUT /api/me
// (profile update).
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		acct, err := h.service.CurrentAccount(r.Context(), sessionToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, encodeAccount(acct))

	case http.MethodPut:
		var req struct {
			DisplayName *string `json:"display_name"`
			Avatar      *string `json:"avatar"`
			Bio         *string `json:"bio"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid JSON body"))
			return
		}

		updated, err := h.service.UpdateProfile(r.Context(), identity.ProfileUpdate{
			DisplayName: req.DisplayName,
			Avatar:      req.Avatar,
			Bio:         req.Bio,
		}, h.viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, encodeAccount(updated))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.service.ListFeed(r.Context(), h.viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": encodeEntries(entries)})
}

// handleProfilePath serves /api/profile/{username}/posts.
func (h *Handler) handleProfilePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/profile/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "posts" {
		http.NotFound(w, r)
		return
	}

	profile, entries, err := h.service.ListProfilePosts(r.Context(), parts[0], h.viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": encodeAccount(profile),
		"posts":   encodeEntries(entries),
	})
}

// handlePosts serves POST /api/posts (create) and GET /api/posts
// (admin listing including pending posts).
func (h *Handler) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid JSON body"))
			return
		}

		created, err := h.service.CreatePost(r.Context(), req.Content, h.viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, encodePost(created))

	case http.MethodGet:
		entries, err := h.service.ListPostsIncludingPending(r.Context(), h.viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": encodeEntries(entries)})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePostPath serves /api/posts/{id}/react, /api/posts/{id}/approval,
// and DELETE /api/posts/{id}.
func (h *Handler) handlePostPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "react" && r.Method == http.MethodPost:
		var req struct {
			Kind string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid JSON body"))
			return
		}

		counts, err := h.service.React(r.Context(), parts[0], req.Kind, h.viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": counts})

	case len(parts) == 2 && parts[1] == "approval" && r.Method == http.MethodPost:
		updated, err := h.service.TogglePostApproval(r.Context(), parts[0], h.viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, encodePost(updated))

	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodDelete:
		if err := h.service.DeletePost(r.Context(), parts[0], h.viewer(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.service.Stats(r.Context(), h.viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"total_accounts":        stats.TotalAccounts,
		"total_posts":           stats.TotalPosts,
		"pending_posts":         stats.PendingPosts,
		"active_accounts":       stats.ActiveAccounts,
		"accounts_joined_today": stats.AccountsJoinedToday,
		"posts_created_today":   stats.PostsCreatedToday,
	})
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), h.viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	payloads := make([]accountPayload, len(accounts))
	for i, acct := range accounts {
		payloads[i] = encodeAccount(acct)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": payloads})
}

// handleAccountPath serves POST /api/accounts/{username}/active.
func (h *Handler) handleAccountPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "active" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	updated, err := h.service.ToggleAccountActive(r.Context(), parts[0], h.viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeAccount(updated))
}

type streamPayload struct {
	Kind      string           `json:"kind"`
	Post      postPayload      `json:"post"`
	Reactions map[string]int64 `json:"reactions,omitempty"`
}

// handleStream delivers live feed events as NDJSON until the client
// disconnects. Delivery is best-effort; missed events are not replayed.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.service.Hub().Subscribe(h.viewer(r))
	defer h.service.Hub().Unsubscribe(sub)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			payload := streamPayload{
				Kind:      string(event.Kind),
				Post:      encodePost(event.Post),
				Reactions: event.Reactions,
			}
			if err := encoder.Encode(payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
