package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/auth"
	"marcel.works/classpoll-go/app/broadcast"
	"marcel.works/classpoll-go/app/metrics"
	"marcel.works/classpoll-go/app/model"
	"marcel.works/classpoll-go/app/polls"
	"marcel.works/classpoll-go/app/sessions"
	"marcel.works/classpoll-go/app/store"
	"marcel.works/classpoll-go/app/timers"
)

type recPub struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recPub) Publish(ctx context.Context, ev broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recPub) countByType(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func newTestStack(t *testing.T) (*Handler, http.Handler, *recPub) {
	t.Helper()
	log := zap.NewNop()
	st := store.NewMemoryStore()
	met := metrics.New(prometheus.NewRegistry())
	reg := sessions.NewRegistry(log, met)
	rec := &recPub{}
	fan := broadcast.Fanout{reg, rec}

	h := &Handler{
		Engine:   polls.NewEngine(st, timers.NewRegistry(log), fan, met, log),
		Auth:     auth.NewService(st, "test-secret", time.Hour, log),
		Sessions: reg,
		Pub:      fan,
		Met:      met,
		Log:      log,
	}
	return h, NewRouter(h, nil), rec
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		payload, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func teacherToken(t *testing.T, router http.Handler) string {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/auth/signup", SignUpRequest{
		Name: "Teacher", Email: "t@school.example", Password: "pw123456",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, "POST", "/api/v1/auth/signin", SignInRequest{
		Email: "t@school.example", Password: "pw123456",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("signin failed: %d %s", w.Code, w.Body.String())
	}
	var resp SignInResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode signin response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	return resp.Token
}

func createPoll(t *testing.T, router http.Handler, token string) model.Poll {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/polls/create", CreatePollRequest{
		Question: "Capital of France?",
		Options:  []string{"Paris", "Lyon"},
		Timer:    300,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create poll failed: %d %s", w.Code, w.Body.String())
	}
	var poll model.Poll
	if err := json.NewDecoder(w.Body).Decode(&poll); err != nil {
		t.Fatalf("decode poll: %v", err)
	}
	return poll
}

func TestTeacherEndpointsRequireToken(t *testing.T) {
	_, router, _ := newTestStack(t)

	w := doJSON(t, router, "POST", "/api/v1/polls/create", CreatePollRequest{}, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("missing token: expected 403, got %d", w.Code)
	}
	w = doJSON(t, router, "POST", "/api/v1/polls/create", CreatePollRequest{}, "garbage")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", w.Code)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	_, router, _ := newTestStack(t)
	_ = teacherToken(t, router)

	w := doJSON(t, router, "POST", "/api/v1/auth/signup", SignUpRequest{
		Name: "Again", Email: "t@school.example", Password: "pw123456",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on duplicate email, got %d", w.Code)
	}
}

func TestCreateAndCurrentPoll(t *testing.T) {
	_, router, _ := newTestStack(t)
	token := teacherToken(t, router)
	poll := createPoll(t, router, token)

	w := doJSON(t, router, "GET", "/api/v1/polls/current", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("current poll failed: %d", w.Code)
	}
	var current model.Poll
	if err := json.NewDecoder(w.Body).Decode(&current); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if current.ID != poll.ID {
		t.Errorf("current %s, expected %s", current.ID, poll.ID)
	}

	w = doJSON(t, router, "POST", "/api/v1/polls/create", CreatePollRequest{
		Question: "Q?", Options: []string{"only one"},
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for one option, got %d", w.Code)
	}
}

func TestAnswerFlow(t *testing.T) {
	_, router, rec := newTestStack(t)
	token := teacherToken(t, router)
	poll := createPoll(t, router, token)

	w := doJSON(t, router, "POST", "/api/v1/polls/answer", SubmitAnswerRequest{
		PollID: poll.ID, SelectedOption: 0, StudentName: "dana",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("answer failed: %d %s", w.Code, w.Body.String())
	}
	var resp SubmitAnswerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode answer response: %v", err)
	}
	if resp.Poll.Options[0].Votes != 1 {
		t.Errorf("vote not counted: %+v", resp.Poll.Options)
	}
	if rec.countByType(broadcast.TypeResultsUpdated) != 1 {
		t.Error("results-updated not broadcast after answer")
	}

	w = doJSON(t, router, "POST", "/api/v1/polls/answer", SubmitAnswerRequest{
		PollID: poll.ID, SelectedOption: 1, StudentName: "dana",
	}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate answer: expected 409, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/polls/answer", SubmitAnswerRequest{
		PollID: poll.ID, SelectedOption: 5, StudentName: "lior",
	}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad index: expected 422, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/polls/answer", SubmitAnswerRequest{
		PollID: "no-such-poll", SelectedOption: 0, StudentName: "lior",
	}, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poll: expected 404, got %d", w.Code)
	}
}

func TestCloseCurrentAndHistory(t *testing.T) {
	_, router, _ := newTestStack(t)
	token := teacherToken(t, router)
	poll := createPoll(t, router, token)

	w := doJSON(t, router, "PUT", "/api/v1/polls/"+poll.ID+"/close", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("close failed: %d %s", w.Code, w.Body.String())
	}
	var closed model.Poll
	if err := json.NewDecoder(w.Body).Decode(&closed); err != nil {
		t.Fatalf("decode closed poll: %v", err)
	}
	if closed.IsActive {
		t.Error("poll still active after close")
	}

	// Idempotent: closing again succeeds.
	w = doJSON(t, router, "PUT", "/api/v1/polls/"+poll.ID+"/close", nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("second close: expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/polls/current", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "null\n" {
		t.Errorf("expected null current poll, got %d %q", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/polls/history", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("history failed: %d", w.Code)
	}
	var history []model.Poll
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].ID != poll.ID {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestKickOutStudent(t *testing.T) {
	_, router, rec := newTestStack(t)
	token := teacherToken(t, router)
	poll := createPoll(t, router, token)

	w := doJSON(t, router, "POST", "/api/v1/polls/answer", SubmitAnswerRequest{
		PollID: poll.ID, SelectedOption: 1, StudentName: "noa",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("answer failed: %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/polls/"+poll.ID+"/kickout/noa", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("kickout failed: %d %s", w.Code, w.Body.String())
	}
	var resp KickOutResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode kickout response: %v", err)
	}
	if len(resp.Poll.Responses) != 0 || resp.Poll.Options[1].Votes != 0 {
		t.Errorf("kick did not remove the answer: %+v", resp.Poll)
	}
	if rec.countByType(broadcast.TypeStudentKicked) != 1 {
		t.Error("student-kicked not broadcast")
	}
}

func TestGetPollResults(t *testing.T) {
	_, router, _ := newTestStack(t)
	token := teacherToken(t, router)
	poll := createPoll(t, router, token)

	w := doJSON(t, router, "GET", "/api/v1/polls/"+poll.ID+"/results", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("results failed: %d", w.Code)
	}
	w = doJSON(t, router, "GET", "/api/v1/polls/no-such-poll/results", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poll results: expected 404, got %d", w.Code)
	}
}
