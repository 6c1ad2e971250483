package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/api/httpapi"
	"github.com/aurasocial/aura/internal/feed/app"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/storage/memory"
)

func newTestServer(t *testing.T, policy moderation.ApprovalPolicy) (*httptest.Server, *app.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	service := app.NewService(store, policy)
	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux, service)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service, store
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp, decoded
}

func register(t *testing.T, baseURL, username string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/register", "", map[string]string{
		"username": username,
		"email":    username + "@aura.social",
		"password": "correct horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", username, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: missing token in %v", username, body)
	}
	return token
}

func TestRegisterLoginLogout(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, moderation.PolicyReviewRequired)
	token := register(t, server.URL, "alice")

	resp, me := doJSON(t, http.MethodGet, server.URL+"/api/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	if me["username"] != "alice" || me["role"] != "regular" {
		t.Fatalf("unexpected me payload %v", me)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/login", "", map[string]string{
		"username": "Alice",
		"password": "correct horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d body %v", resp.StatusCode, body)
	}
	if body["code"] != "NOT_LOGGED_IN" {
		t.Fatalf("expected NOT_LOGGED_IN code, got %v", body)
	}
}

func TestLoginFailureStatuses(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, moderation.PolicyReviewRequired)
	register(t, server.URL, "alice")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/register", "", map[string]string{
		"username": "ALICE",
		"email":    "other@aura.social",
		"password": "pw123456",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d body %v", resp.StatusCode, body)
	}
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, moderation.PolicyAutoApprove)
	token := register(t, server.URL, "alice")

	resp, created := doJSON(t, http.MethodPost, server.URL+"/api/posts", token, map[string]string{
		"content": "hello world",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post: status %d body %v", resp.StatusCode, created)
	}
	postID, _ := created["id"].(string)
	if postID == "" || created["approved"] != true {
		t.Fatalf("unexpected post payload %v", created)
	}

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/posts", "", map[string]string{"content": "anon"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous post, got %d", resp.StatusCode)
	}

	reactURL := fmt.Sprintf("%s/api/posts/%s/react", server.URL, postID)
	resp, body := doJSON(t, http.MethodPost, reactURL, token, map[string]string{"kind": "like"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("react: status %d body %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPost, reactURL, token, map[string]string{"kind": "like"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("react: status %d body %v", resp.StatusCode, body)
	}
	reactions, _ := body["reactions"].(map[string]any)
	if reactions["like"] != float64(2) {
		t.Fatalf("expected like count 2, got %v", body)
	}

	resp, feed := doJSON(t, http.MethodGet, server.URL+"/api/feed", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: status %d", resp.StatusCode)
	}
	posts, _ := feed["posts"].([]any)
	if len(posts) != 1 {
		t.Fatalf("expected one feed post, got %v", feed)
	}
	entry, _ := posts[0].(map[string]any)
	if entry["author_username"] != "alice" {
		t.Fatalf("expected denormalized author, got %v", entry)
	}

	resp, profile := doJSON(t, http.MethodGet, server.URL+"/api/profile/alice/posts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d body %v", resp.StatusCode, profile)
	}
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/profile/ghost/posts", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown profile, got %d", resp.StatusCode)
	}
}

func TestProfileUpdateOverHTTP(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t, moderation.PolicyAutoApprove)
	token := register(t, server.URL, "alice")

	resp, created := doJSON(t, http.MethodPost, server.URL+"/api/posts", token, map[string]string{
		"content": "posted before the edit",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post: status %d body %v", resp.StatusCode, created)
	}

	resp, updated := doJSON(t, http.MethodPut, server.URL+"/api/me", token, map[string]string{
		"avatar":       "🚀",
		"display_name": "Alice Renamed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: status %d body %v", resp.StatusCode, updated)
	}
	if updated["avatar"] != "🚀" || updated["display_name"] != "Alice Renamed" {
		t.Fatalf("unexpected profile payload %v", updated)
	}

	// The existing post composes with the edited profile.
	resp, feed := doJSON(t, http.MethodGet, server.URL+"/api/feed", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: status %d", resp.StatusCode)
	}
	posts, _ := feed["posts"].([]any)
	if len(posts) != 1 {
		t.Fatalf("expected one feed post, got %v", feed)
	}
	entry, _ := posts[0].(map[string]any)
	if entry["author_avatar"] != "🚀" || entry["author_name"] != "Alice Renamed" {
		t.Fatalf("expected edited profile on the composed post, got %v", entry)
	}

	resp, body := doJSON(t, http.MethodPut, server.URL+"/api/me", "", map[string]string{"avatar": "🤖"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous profile update, got %d body %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPut, server.URL+"/api/me", token, map[string]string{"avatar": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank avatar, got %d body %v", resp.StatusCode, body)
	}
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	server, service, store := newTestServer(t, moderation.PolicyReviewRequired)
	adminToken := register(t, server.URL, "root")
	promoteToAdmin(t, service, store, adminToken)
	memberToken := register(t, server.URL, "bob")

	resp, created := doJSON(t, http.MethodPost, server.URL+"/api/posts", memberToken, map[string]string{
		"content": "pending post",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create post: status %d", resp.StatusCode)
	}
	postID, _ := created["id"].(string)

	// Member callers are rejected on every admin route.
	for _, url := range []string{
		server.URL + "/api/stats",
		server.URL + "/api/accounts",
		server.URL + "/api/posts",
	} {
		resp, _ := doJSON(t, http.MethodGet, url, memberToken, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 for %s, got %d", url, resp.StatusCode)
		}
	}

	resp, stats := doJSON(t, http.MethodGet, server.URL+"/api/stats", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", resp.StatusCode)
	}
	if stats["total_accounts"] != float64(2) || stats["pending_posts"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}

	approvalURL := fmt.Sprintf("%s/api/posts/%s/approval", server.URL, postID)
	resp, toggled := doJSON(t, http.MethodPost, approvalURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK || toggled["approved"] != true {
		t.Fatalf("toggle approval: status %d body %v", resp.StatusCode, toggled)
	}

	resp, suspended := doJSON(t, http.MethodPost, server.URL+"/api/accounts/bob/active", adminToken, nil)
	if resp.StatusCode != http.StatusOK || suspended["active"] != false {
		t.Fatalf("toggle active: status %d body %v", resp.StatusCode, suspended)
	}

	deleteURL := fmt.Sprintf("%s/api/posts/%s", server.URL, postID)
	resp, _ = doJSON(t, http.MethodDelete, deleteURL, adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete post: status %d", resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodDelete, deleteURL, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d body %v", resp.StatusCode, body)
	}
}

// promoteToAdmin flips the freshly registered caller to the admin role
// through the store, mirroring operator provisioning.
func promoteToAdmin(t *testing.T, service *app.Service, store *memory.Store, token string) {
	t.Helper()

	acct, err := service.CurrentAccount(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve account: %v", err)
	}
	acct.Role = account.RoleAdmin
	if err := store.UpdateAccount(context.Background(), acct); err != nil {
		t.Fatalf("promote account: %v", err)
	}
}
