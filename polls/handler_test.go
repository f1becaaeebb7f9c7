package polls

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/auth"
	"github.com/user/polls-go/events"
	"github.com/user/polls-go/testutil"
)

// fakeAuthenticator maps fixed tokens to users.
type fakeAuthenticator map[string]*auth.User

func (f fakeAuthenticator) Authenticate(ctx context.Context, key string) (*auth.User, error) {
	user, ok := f[key]
	if !ok {
		return nil, apperror.NewAuthError("Invalid token.", nil)
	}
	return user, nil
}

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
)

func newTestRouter(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	store := newMemStore()
	broadcaster := events.NewBroadcaster()
	handler := NewPollHandler(NewPollService(store, broadcaster), broadcaster)

	authenticator := fakeAuthenticator{
		aliceToken: {ID: alice, Username: "alice"},
		bobToken:   {ID: bob, Username: "bob"},
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.TokenMiddleware(authenticator))
		handler.RegisterRoutes(r)
		handler.RegisterStreamRoutes(r)
	})
	return r, store
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPollRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/polls/"},
		{"POST", "/polls/"},
		{"GET", "/polls/1/"},
		{"DELETE", "/polls/1/"},
		{"GET", "/polls/1/choices/"},
		{"POST", "/polls/1/choices/1/vote/"},
		{"GET", "/polls/1/events/"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, testutil.MakeRequest(tt.method, tt.path, nil, ""))
			testutil.AssertStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestPollLifecycle(t *testing.T) {
	router, store := newTestRouter(t)

	// Create.
	w := serve(router, testutil.MakeRequest("POST", "/polls/", PollRequest{Question: "Lunch?"}, aliceToken))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var poll Poll
	testutil.AssertJSON(t, w, &poll)
	if poll.CreatedBy != alice || poll.Question != "Lunch?" {
		t.Fatalf("Unexpected poll %+v", poll)
	}
	pollPath := fmt.Sprintf("/polls/%d/", poll.ID)

	// Only the owner adds choices.
	w = serve(router, testutil.MakeRequest("POST", pollPath+"choices/", ChoiceRequest{ChoiceText: "Pizza"}, bobToken))
	testutil.AssertStatus(t, w, http.StatusForbidden)
	var errResp apperror.ErrorResponse
	testutil.AssertJSON(t, w, &errResp)
	if errResp.Error != msgCannotCreateChoice {
		t.Errorf("Expected %q, got %q", msgCannotCreateChoice, errResp.Error)
	}

	w = serve(router, testutil.MakeRequest("POST", pollPath+"choices/", ChoiceRequest{ChoiceText: "Pizza"}, aliceToken))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var choice Choice
	testutil.AssertJSON(t, w, &choice)

	// Vote once, then again.
	votePath := fmt.Sprintf("%schoices/%d/vote/", pollPath, choice.ID)
	w = serve(router, testutil.MakeRequest("POST", votePath, nil, bobToken))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var vote Vote
	testutil.AssertJSON(t, w, &vote)
	if vote.VotedBy != bob {
		t.Errorf("Expected voted_by %d, got %d", bob, vote.VotedBy)
	}

	w = serve(router, testutil.MakeRequest("POST", votePath, nil, bobToken))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp = apperror.ErrorResponse{}
	testutil.AssertJSON(t, w, &errResp)
	if got := errResp.Fields[apperror.NonFieldErrors]; len(got) != 1 || got[0] != msgDuplicateVote {
		t.Errorf("Unexpected field errors %v", errResp.Fields)
	}

	// Nested representation uses the serializer field names.
	w = serve(router, testutil.MakeRequest("GET", pollPath, nil, bobToken))
	testutil.AssertStatus(t, w, http.StatusOK)
	var raw map[string]interface{}
	testutil.AssertJSON(t, w, &raw)
	for _, key := range []string{"id", "question", "created_by", "pub_date", "choices"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Missing key %q in %v", key, raw)
		}
	}
	choices := raw["choices"].([]interface{})
	first := choices[0].(map[string]interface{})
	for _, key := range []string{"id", "poll", "choice_text", "votes"} {
		if _, ok := first[key]; !ok {
			t.Errorf("Missing choice key %q in %v", key, first)
		}
	}
	if len(first["votes"].([]interface{})) != 1 {
		t.Errorf("Expected one nested vote, got %v", first["votes"])
	}

	// Delete: non-owner refused, owner succeeds.
	w = serve(router, testutil.MakeRequest("DELETE", pollPath, nil, bobToken))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = serve(router, testutil.MakeRequest("DELETE", pollPath, nil, aliceToken))
	testutil.AssertStatus(t, w, http.StatusNoContent)
	if store.voteCount() != 0 || store.choiceCount() != 0 {
		t.Error("Expected cascade delete")
	}

	w = serve(router, testutil.MakeRequest("GET", pollPath, nil, aliceToken))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestListPollsHandler(t *testing.T) {
	router, store := newTestRouter(t)
	for i := 0; i < PageSize+1; i++ {
		_, _ = store.CreatePoll(context.Background(), fmt.Sprintf("q%d", i), alice)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLen    int
	}{
		{"first page", "/polls/", http.StatusOK, PageSize},
		{"second page", "/polls/?page=2", http.StatusOK, 1},
		{"bad page", "/polls/?page=abc", http.StatusNotFound, 0},
		{"zero page", "/polls/?page=0", http.StatusNotFound, 0},
		{"past the end", "/polls/?page=3", http.StatusOK, 0},
		{"last addressable page", fmt.Sprintf("/polls/?page=%d", MaxPage), http.StatusOK, 0},
		{"page overflows offset", fmt.Sprintf("/polls/?page=%d", MaxPage+1), http.StatusNotFound, 0},
		{"page overflows int", "/polls/?page=99999999999999999999", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, testutil.MakeRequest("GET", tt.path, nil, aliceToken))
			testutil.AssertStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var polls []Poll
			testutil.AssertJSON(t, w, &polls)
			if len(polls) != tt.wantLen {
				t.Errorf("Expected %d polls, got %d", tt.wantLen, len(polls))
			}
		})
	}
}

func TestPollHandlerBadInput(t *testing.T) {
	router, store := newTestRouter(t)
	poll, _ := store.CreatePoll(context.Background(), "Existing", alice)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
	}{
		{"non numeric id", "GET", "/polls/abc/", nil, http.StatusNotFound},
		{"missing poll", "GET", "/polls/999/", nil, http.StatusNotFound},
		{"missing poll choices", "GET", "/polls/999/choices/", nil, http.StatusNotFound},
		{"empty question", "POST", "/polls/", PollRequest{}, http.StatusBadRequest},
		{"unknown field", "POST", "/polls/", map[string]string{"question": "q", "created_by": "2"}, http.StatusBadRequest},
		{"no body", "POST", "/polls/", nil, http.StatusBadRequest},
		{"missing choice", "POST", fmt.Sprintf("/polls/%d/choices/999/vote/", poll.ID), nil, http.StatusNotFound},
		{"update by non owner", "PUT", fmt.Sprintf("/polls/%d/", poll.ID), PollRequest{Question: "x"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := aliceToken
			if tt.name == "update by non owner" {
				token = bobToken
			}
			w := serve(router, testutil.MakeRequest(tt.method, tt.path, tt.body, token))
			testutil.AssertStatus(t, w, tt.wantStatus)
			var errResp apperror.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil || errResp.Error == "" {
				t.Errorf("Expected error body, got %q", w.Body.String())
			}
		})
	}
}

// closingLookup closes the poll's streams right after the lookup, as a delete
// racing with a new subscriber would.
type closingLookup struct {
	PollService
	broadcaster *events.Broadcaster
}

func (s closingLookup) GetPoll(ctx context.Context, id int64) (*Poll, error) {
	poll, err := s.PollService.GetPoll(ctx, id)
	s.broadcaster.Close(id)
	return poll, err
}

func TestStreamEventsEndsWhenPollDeletedDuringLookup(t *testing.T) {
	store := newMemStore()
	broadcaster := events.NewBroadcaster()
	svc := closingLookup{PollService: NewPollService(store, broadcaster), broadcaster: broadcaster}
	handler := NewPollHandler(svc, broadcaster)
	poll, _ := store.CreatePoll(context.Background(), "Racy", alice)

	r := chi.NewRouter()
	r.Use(auth.TokenMiddleware(fakeAuthenticator{aliceToken: {ID: alice, Username: "alice"}}))
	handler.RegisterStreamRoutes(r)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- serve(r, testutil.MakeRequest("GET", fmt.Sprintf("/polls/%d/events/", poll.ID), nil, aliceToken))
	}()

	select {
	case w := <-done:
		testutil.AssertStatus(t, w, http.StatusOK)
	case <-time.After(2 * time.Second):
		t.Fatal("Stream stayed open after its poll was closed")
	}
	if got := broadcaster.Count(poll.ID); got != 0 {
		t.Errorf("Expected no subscribers left, got %d", got)
	}
}

func TestStreamEventsMissingPollLeavesNoSubscriber(t *testing.T) {
	store := newMemStore()
	broadcaster := events.NewBroadcaster()
	handler := NewPollHandler(NewPollService(store, broadcaster), broadcaster)

	r := chi.NewRouter()
	r.Use(auth.TokenMiddleware(fakeAuthenticator{aliceToken: {ID: alice, Username: "alice"}}))
	handler.RegisterStreamRoutes(r)

	w := serve(r, testutil.MakeRequest("GET", "/polls/42/events/", nil, aliceToken))
	testutil.AssertStatus(t, w, http.StatusNotFound)
	if got := broadcaster.Count(42); got != 0 {
		t.Errorf("Expected no subscribers left, got %d", got)
	}
}
