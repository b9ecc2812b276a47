package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	leaderboardservice "ocelot/contexts/evaluation/leaderboard-service"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	leaderboardhttp "ocelot/contexts/evaluation/leaderboard-service/transport/http"
)

const (
	testScorerKey = "scorer-secret"
	testAdminKey  = "admin-secret"
)

func newTestServer(t *testing.T) (*Server, leaderboardservice.Module) {
	t.Helper()
	module := leaderboardservice.NewInMemoryModule([]entities.TestSet{
		{TestSetID: "wmt23-en-de", Name: "WMT23", SourceLanguage: "en", TargetLanguage: "de", IsActive: true},
	}, slog.Default())
	team := entities.Team{TeamID: "team-abc", Name: "ABC", Email: "abc@example.org", Token: "abc123", CreatedAt: time.Now().UTC()}
	if err := module.Store.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	server := New(module, Options{
		ScorerAPIKey: testScorerKey,
		AdminAPIKey:  testAdminKey,
	}, slog.Default(), ":0")
	return server, module
}

func multipartSubmission(t *testing.T, testSetID string, fileName string, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("test_set_id", testSetID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("sgml_file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func submitRequest(t *testing.T, server *Server, token string, fileName string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartSubmission(t, "wmt23-en-de", fileName, `<srcset setid="wmt23"></srcset>`)
	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func TestSubmitRequiresIdentity(t *testing.T) {
	server, module := newTestServer(t)

	rr := submitRequest(t, server, "", "run.sgm")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = submitRequest(t, server, "not-a-token", "run.sgm")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d body=%s", rr.Code, rr.Body.String())
	}

	pending, err := module.Store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("rejected uploads must not write, got %d outbox rows", len(pending))
	}
}

func TestSubmitMissingFileIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	rr := submitRequest(t, server, "abc123", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp leaderboardhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Code != "missing_file" {
		t.Fatalf("expected missing_file, got %+v err=%v", resp, err)
	}
}

func TestSubmitUntilQuotaExceeded(t *testing.T) {
	server, _ := newTestServer(t)

	for index := 0; index < 7; index++ {
		rr := submitRequest(t, server, "abc123", fmt.Sprintf("run-%d.sgm", index))
		if rr.Code != http.StatusCreated {
			t.Fatalf("upload %d: expected 201, got %d body=%s", index+1, rr.Code, rr.Body.String())
		}
		var resp leaderboardhttp.SubmitResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode submit response: %v", err)
		}
		if resp.Submission.State != "pending" || resp.Submission.SubmissionID == "" {
			t.Fatalf("expected pending submission, got %+v", resp.Submission)
		}
	}

	rr := submitRequest(t, server, "abc123", "run-8.sgm")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLeaderboardNeverExposesTokens(t *testing.T) {
	server, _ := newTestServer(t)

	rr := submitRequest(t, server, "abc123", "run.sgm")
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var submitted leaderboardhttp.SubmitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	scoreReq := httptest.NewRequest(http.MethodPost, "/internal/submissions/"+submitted.Submission.SubmissionID+"/score", strings.NewReader(`{"score":28.7,"score_chrf":55.1}`))
	scoreReq.Header.Set("X-Scorer-Key", testScorerKey)
	scoreRR := httptest.NewRecorder()
	server.mux.ServeHTTP(scoreRR, scoreReq)
	if scoreRR.Code != http.StatusOK {
		t.Fatalf("record score: expected 200, got %d body=%s", scoreRR.Code, scoreRR.Body.String())
	}

	anonymous := httptest.NewRecorder()
	server.mux.ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil))
	if anonymous.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", anonymous.Code)
	}
	if strings.Contains(anonymous.Body.String(), "abc123") {
		t.Fatalf("leaderboard leaked a team token: %s", anonymous.Body.String())
	}
	var board leaderboardhttp.LeaderboardResponse
	if err := json.Unmarshal(anonymous.Body.Bytes(), &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(board.Items) != 1 || len(board.Items[0].Entries) != 1 || board.Items[0].Entries[0].IsOwn {
		t.Fatalf("unexpected anonymous leaderboard %+v", board)
	}

	ownReq := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	ownReq.Header.Set("Authorization", "Bearer abc123")
	own := httptest.NewRecorder()
	server.mux.ServeHTTP(own, ownReq)
	if strings.Contains(own.Body.String(), "abc123") {
		t.Fatalf("leaderboard leaked a team token to its owner: %s", own.Body.String())
	}
	if err := json.Unmarshal(own.Body.Bytes(), &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if !board.Items[0].Entries[0].IsOwn {
		t.Fatalf("expected owner's entry to be flagged")
	}
}

func TestInternalRoutesRequireKeys(t *testing.T) {
	server, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		header string
		value  string
		body   string
	}{
		{name: "score without key", method: http.MethodPost, path: "/internal/submissions/sub-1/score", header: "X-Scorer-Key", body: `{"score":1}`},
		{name: "score with admin key", method: http.MethodPost, path: "/internal/submissions/sub-1/score", header: "X-Scorer-Key", value: testAdminKey, body: `{"score":1}`},
		{name: "activate without key", method: http.MethodPut, path: "/internal/test-sets/wmt23-en-de/active", header: "X-Admin-Key", body: `{"active":false}`},
		{name: "activate with wrong key", method: http.MethodPut, path: "/internal/test-sets/wmt23-en-de/active", header: "X-Admin-Key", value: "nope", body: `{"active":false}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.value != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rr := httptest.NewRecorder()
			server.mux.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUnconfiguredKeysRejectEverything(t *testing.T) {
	module := leaderboardservice.NewInMemoryModule(nil, slog.Default())
	server := New(module, Options{}, slog.Default(), ":0")

	req := httptest.NewRequest(http.MethodPut, "/internal/test-sets/x/active", strings.NewReader(`{"active":true}`))
	req.Header.Set("X-Admin-Key", "")
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestDeactivatedTestSetRejectsUploads(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/internal/test-sets/wmt23-en-de/active", strings.NewReader(`{"active":false}`))
	req.Header.Set("X-Admin-Key", testAdminKey)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	upload := submitRequest(t, server, "abc123", "run.sgm")
	if upload.Code != http.StatusConflict {
		t.Fatalf("expected 409 for inactive test set, got %d body=%s", upload.Code, upload.Body.String())
	}
}

func TestRegisterSetsSessionCookieAndSignOutClearsIt(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/teams", strings.NewReader(`{"name":"Charles","email":"charles@example.org"}`))
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var registered leaderboardhttp.RegisterTeamResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Token == "" {
		t.Fatalf("registration must return the token once")
	}

	var session *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			session = cookie
		}
	}
	if session == nil || session.Value == "" || !session.HttpOnly {
		t.Fatalf("expected an http-only session cookie, got %+v", session)
	}

	meReq := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	meReq.AddCookie(session)
	me := httptest.NewRecorder()
	server.mux.ServeHTTP(me, meReq)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200 from /v1/me, got %d body=%s", me.Code, me.Body.String())
	}
	if strings.Contains(me.Body.String(), registered.Token) {
		t.Fatalf("/v1/me must not echo the token")
	}

	again := httptest.NewRequest(http.MethodPost, "/v1/teams", strings.NewReader(`{"name":"Other","email":"other@example.org"}`))
	again.AddCookie(session)
	againRR := httptest.NewRecorder()
	server.mux.ServeHTTP(againRR, again)
	if againRR.Code != http.StatusConflict {
		t.Fatalf("expected 409 when registering while signed in, got %d", againRR.Code)
	}

	outReq := httptest.NewRequest(http.MethodDelete, "/v1/session", nil)
	outReq.AddCookie(session)
	out := httptest.NewRecorder()
	server.mux.ServeHTTP(out, outReq)
	if out.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", out.Code)
	}

	afterReq := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	afterReq.AddCookie(session)
	after := httptest.NewRecorder()
	server.mux.ServeHTTP(after, afterReq)
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign out, got %d", after.Code)
	}
}

func TestInvalidJSONIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/session", strings.NewReader(`{"name":`))
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc123":   "abc123",
		"bearer  abc123 ": "abc123",
		"Basic abc123":    "",
		"":                "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
