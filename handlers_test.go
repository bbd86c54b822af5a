package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	Routes(r, f.engine, AuthConfig{JWTSecret: testSecret, AllowHeader: true})
	return r, f
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func bearer(t *testing.T, sub, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + s
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	strict := gin.New()
	Routes(strict, f.engine, AuthConfig{JWTSecret: testSecret})

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"header auth disabled", map[string]string{userHeader: "alice"}, http.StatusUnauthorized},
		{"wrong secret", map[string]string{"Authorization": bearer(t, "alice", "other")}, http.StatusUnauthorized},
		{"valid token", map[string]string{"Authorization": bearer(t, "alice", testSecret)}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			strict.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestMeEndpoints(t *testing.T) {
	r, _ := newRouter(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/me", nil, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /me = %d %s", w.Code, w.Body.String())
	}
	me := decode[MeResponse](t, w)
	if me.PublicID != "alice" || me.Rating != 1200 {
		t.Errorf("me = %+v", me)
	}

	w = doRequest(t, r, http.MethodPut, "/api/v1/me", gin.H{"displayName": "A"}, "alice")
	if w.Code != http.StatusBadRequest {
		t.Errorf("short name = %d, want 400", w.Code)
	}
	w = doRequest(t, r, http.MethodPut, "/api/v1/me", gin.H{"displayName": " Alice "}, "alice")
	if w.Code != http.StatusOK || decode[MeResponse](t, w).DisplayName == nil {
		t.Fatalf("PUT /me = %d %s", w.Code, w.Body.String())
	}
	if got := *decode[MeResponse](t, w).DisplayName; got != "Alice" {
		t.Errorf("displayName = %q, want Alice", got)
	}
}

func TestVotingFlowOverHTTP(t *testing.T) {
	r, _ := newRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/v1/groups", gin.H{"name": "Gophers"}, "owner")
	if w.Code != http.StatusCreated {
		t.Fatalf("create group = %d %s", w.Code, w.Body.String())
	}
	group := decode[Group](t, w)
	for _, u := range []string{"author", "v1", "v2"} {
		if w := doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/join", nil, u); w.Code != http.StatusCreated {
			t.Fatalf("join %s = %d %s", u, w.Code, w.Body.String())
		}
	}
	if w := doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/join", nil, "v1"); w.Code != http.StatusConflict {
		t.Errorf("rejoin = %d, want 409", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/tasks", gin.H{"title": "t", "description": "d"}, "author")
	if w.Code != http.StatusForbidden || decode[ErrorResponse](t, w).Error != "Forbidden" {
		t.Errorf("member creating task = %d %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/tasks", gin.H{"title": "Essay", "description": "Write", "pointValue": 20}, "owner")
	if w.Code != http.StatusCreated {
		t.Fatalf("create task = %d %s", w.Code, w.Body.String())
	}
	task := decode[Task](t, w)

	w = doRequest(t, r, http.MethodPost, "/api/v1/submissions", gin.H{"taskId": task.ID, "evidenceUrl": "https://example.org"}, "author")
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d %s", w.Code, w.Body.String())
	}
	sub := decode[TaskSubmission](t, w)
	if w := doRequest(t, r, http.MethodPost, "/api/v1/submissions", gin.H{"taskId": task.ID}, "author"); w.Code != http.StatusConflict {
		t.Errorf("duplicate submit = %d, want 409", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/groups/"+group.ID+"/submissions/pending", nil, "v1")
	pending := decode[struct {
		Submissions []TaskSubmission `json:"submissions"`
	}](t, w)
	if len(pending.Submissions) != 1 {
		t.Fatalf("pending = %s", w.Body.String())
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/votes", gin.H{"submissionId": sub.ID, "vote": "approve"}, "v1")
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Error != "InvalidVoteValue" {
		t.Errorf("lowercase vote = %d %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, http.MethodPost, "/api/v1/votes", gin.H{"submissionId": sub.ID, "vote": "APPROVE"}, "author")
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Error != "SelfVote" {
		t.Errorf("self vote = %d %s", w.Code, w.Body.String())
	}

	var last *httptest.ResponseRecorder
	for _, u := range []string{"owner", "v1", "v2"} {
		last = doRequest(t, r, http.MethodPost, "/api/v1/votes", gin.H{"submissionId": sub.ID, "vote": "APPROVE"}, u)
		if last.Code != http.StatusCreated {
			t.Fatalf("vote %s = %d %s", u, last.Code, last.Body.String())
		}
	}
	res := decode[VoteResult](t, last)
	if res.Submission.Status.String() != "APPROVED" || res.Submission.Score != 20 {
		t.Errorf("decided submission = %+v", res.Submission)
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/me/ratings", nil, "author")
	ratings := decode[struct {
		Events []RatingEvent `json:"events"`
	}](t, w)
	if len(ratings.Events) != 1 || ratings.Events[0].Delta != 2 {
		t.Errorf("ratings = %s", w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/me/stats", nil, "author")
	stats := decode[StatsResponse](t, w)
	if stats.Approved != 1 || stats.TotalScore != 20 || stats.Rating != 1202 {
		t.Errorf("stats = %+v", stats)
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/groups/"+group.ID+"/leaderboard?scope=overall", nil, "v1")
	board := decode[struct {
		Entries []LeaderboardRow `json:"entries"`
	}](t, w)
	if len(board.Entries) != 4 || board.Entries[0].Rating != 1202 {
		t.Errorf("leaderboard = %s", w.Body.String())
	}
	if w := doRequest(t, r, http.MethodGet, "/api/v1/groups/"+group.ID+"/leaderboard?scope=monthly", nil, "v1"); w.Code != http.StatusBadRequest {
		t.Errorf("bad scope = %d, want 400", w.Code)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	r, f := newRouter(t)
	f.seedTopics(t)

	w := doRequest(t, r, http.MethodPost, "/api/v1/groups", gin.H{"name": "Pairs"}, "alice")
	group := decode[Group](t, w)
	doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/join", nil, "bob")

	w = doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/sessions", nil, "alice")
	if w.Code != http.StatusOK || decode[map[string]int](t, w)["created"] != 1 {
		t.Fatalf("pair = %d %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/sessions", nil, "alice")
	if decode[map[string]int](t, w)["created"] != 0 {
		t.Errorf("second pairing = %s", w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/groups/"+group.ID+"/sessions/current", nil, "alice")
	current := decode[struct {
		Sessions []LearningSession `json:"sessions"`
	}](t, w)
	if len(current.Sessions) != 1 {
		t.Fatalf("current = %s", w.Body.String())
	}
	sess := current.Sessions[0]

	w = doRequest(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/complete", nil, "alice")
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Error != "IncompleteSession" {
		t.Errorf("early completion = %d %s", w.Code, w.Body.String())
	}

	var qs []TopicQuestion
	f.engine.db.Where("topic_id = ?", sess.TopicID).Order("position").Find(&qs)
	for _, who := range []string{"alice", "bob"} {
		for _, q := range qs {
			w := doRequest(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/responses",
				gin.H{"questionId": q.ID, "selected": q.AnswerIndex}, who)
			if w.Code != http.StatusCreated {
				t.Fatalf("answer = %d %s", w.Code, w.Body.String())
			}
		}
	}
	w = doRequest(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/responses", gin.H{"questionId": qs[0].ID}, "alice")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing selection = %d, want 400", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/complete", nil, "bob")
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Session    LearningSession `json:"session"`
		EloChanges map[string]struct {
			OldRating float64 `json:"oldRating"`
			NewRating float64 `json:"newRating"`
			Change    float64 `json:"change"`
		} `json:"eloChanges"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Session.Completed || len(body.EloChanges) != 2 || body.EloChanges["playerA"].Change != 0 {
		t.Errorf("completion = %s", w.Body.String())
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/complete", nil, "alice")
	if w.Code != http.StatusConflict || decode[ErrorResponse](t, w).Error != "AlreadyCompleted" {
		t.Errorf("second completion = %d %s", w.Code, w.Body.String())
	}
}

func TestPairingRequiresGroupAdmin(t *testing.T) {
	r, f := newRouter(t)
	f.seedTopics(t)

	w := doRequest(t, r, http.MethodPost, "/api/v1/groups", gin.H{"name": "Pairs"}, "alice")
	group := decode[Group](t, w)
	doRequest(t, r, http.MethodPost, "/api/v1/groups/"+group.ID+"/join", nil, "bob")

	tests := []struct {
		name     string
		path     string
		user     string
		wantCode int
		wantErr  string
	}{
		{"plain member", "/api/v1/groups/" + group.ID + "/sessions", "bob", http.StatusForbidden, "Forbidden"},
		{"outsider", "/api/v1/groups/" + group.ID + "/sessions", "carol", http.StatusForbidden, "NotGroupMember"},
		{"unknown group", "/api/v1/groups/nope/sessions", "alice", http.StatusNotFound, "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, tt.path, nil, tt.user)
			if w.Code != tt.wantCode || decode[ErrorResponse](t, w).Error != tt.wantErr {
				t.Errorf("pair = %d %s, want %d %s", w.Code, w.Body.String(), tt.wantCode, tt.wantErr)
			}
		})
	}

	var n int64
	f.engine.db.Model(&LearningSession{}).Count(&n)
	if n != 0 {
		t.Errorf("sessions created by rejected triggers = %d", n)
	}
}
