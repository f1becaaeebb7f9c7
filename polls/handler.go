package polls

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/auth"
	"github.com/user/polls-go/events"
)

// PollHandler serves the poll, choice and vote endpoints. Every route
// expects auth.TokenMiddleware to have run.
type PollHandler struct {
	service     PollService
	broadcaster *events.Broadcaster
}

func NewPollHandler(service PollService, broadcaster *events.Broadcaster) *PollHandler {
	return &PollHandler{service: service, broadcaster: broadcaster}
}

// RegisterRoutes adds the JSON endpoints to router.
func (h *PollHandler) RegisterRoutes(router chi.Router) {
	router.Get("/polls/", h.listPolls)
	router.Post("/polls/", h.createPoll)
	router.Get("/polls/{pollID}/", h.getPoll)
	router.Put("/polls/{pollID}/", h.updatePoll)
	router.Delete("/polls/{pollID}/", h.deletePoll)
	router.Get("/polls/{pollID}/choices/", h.listChoices)
	router.Post("/polls/{pollID}/choices/", h.createChoice)
	router.Post("/polls/{pollID}/choices/{choiceID}/vote/", h.vote)
}

// RegisterStreamRoutes adds the long-lived event stream endpoint. It is kept
// apart so request timeouts can be left off it.
func (h *PollHandler) RegisterStreamRoutes(router chi.Router) {
	router.Get("/polls/{pollID}/events/", h.streamEvents)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.NewNotFoundError("Not found.", err)
	}
	return id, nil
}

func requestUser(r *http.Request) (*auth.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, apperror.NewAuthError("Authentication credentials were not provided.", nil)
	}
	return user, nil
}

// listPolls godoc
// @Summary List polls
// @Description Returns up to 20 polls ordered by publication date, with nested choices and votes.
// @Tags Polls
// @Produce json
// @Security TokenAuth
// @Param page query int false "1-based page number"
// @Success 200 {array} polls.Poll
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "Invalid page"
// @Router /polls/ [get]
func (h *PollHandler) listPolls(w http.ResponseWriter, r *http.Request) {
	query := PollListQuery{Page: 1}
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > MaxPage {
			auth.WriteError(w, r, apperror.NewNotFoundError("Invalid page.", err))
			return
		}
		query.Page = page
	}

	polls, err := h.service.ListPolls(r.Context(), query)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, polls)
}

// createPoll godoc
// @Summary Create a poll
// @Tags Polls
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param body body polls.PollRequest true "Poll question"
// @Success 201 {object} polls.Poll
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /polls/ [post]
func (h *PollHandler) createPoll(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	var req PollRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, r, err)
		return
	}

	poll, err := h.service.CreatePoll(r.Context(), req, user.ID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, poll)
}

// getPoll godoc
// @Summary Retrieve a poll
// @Tags Polls
// @Produce json
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Success 200 {object} polls.Poll
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/ [get]
func (h *PollHandler) getPoll(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	poll, err := h.service.GetPoll(r.Context(), id)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, poll)
}

// updatePoll godoc
// @Summary Update a poll
// @Description Only the poll's creator may change its question.
// @Tags Polls
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Param body body polls.PollRequest true "New question"
// @Success 200 {object} polls.Poll
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/ [put]
func (h *PollHandler) updatePoll(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	id, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	var req PollRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, r, err)
		return
	}

	poll, err := h.service.UpdatePoll(r.Context(), id, req, user.ID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, poll)
}

// deletePoll godoc
// @Summary Delete a poll
// @Description Only the poll's creator may delete it. Choices and votes are removed with it.
// @Tags Polls
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Success 204
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/ [delete]
func (h *PollHandler) deletePoll(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	id, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	if err := h.service.DeletePoll(r.Context(), id, user.ID); err != nil {
		auth.WriteError(w, r, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.Close(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// listChoices godoc
// @Summary List the choices of a poll
// @Tags Choices
// @Produce json
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Success 200 {array} polls.Choice
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/choices/ [get]
func (h *PollHandler) listChoices(w http.ResponseWriter, r *http.Request) {
	pollID, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	choices, err := h.service.ListChoices(r.Context(), pollID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, choices)
}

// createChoice godoc
// @Summary Add a choice to a poll
// @Description Only the poll's creator may add choices.
// @Tags Choices
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Param body body polls.ChoiceRequest true "Choice text"
// @Success 201 {object} polls.Choice
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/choices/ [post]
func (h *PollHandler) createChoice(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	pollID, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	var req ChoiceRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, r, err)
		return
	}

	choice, err := h.service.CreateChoice(r.Context(), pollID, req, user.ID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, choice)
}

// vote godoc
// @Summary Vote for a choice
// @Description Records the requester's vote. A user votes at most once per poll.
// @Tags Votes
// @Produce json
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Param choiceID path int true "Choice ID"
// @Success 201 {object} polls.Vote
// @Failure 400 {object} apperror.ErrorResponse "Already voted in this poll"
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/choices/{choiceID}/vote/ [post]
func (h *PollHandler) vote(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	pollID, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	choiceID, err := idParam(r, "choiceID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}

	vote, err := h.service.Vote(r.Context(), pollID, choiceID, user.ID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, vote)
}

// streamEvents godoc
// @Summary Stream poll events
// @Description Server-Sent Events stream of choice_created, vote_cast, poll_updated and poll_deleted.
// @Tags Polls
// @Produce text/event-stream
// @Security TokenAuth
// @Param pollID path int true "Poll ID"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /polls/{pollID}/events/ [get]
func (h *PollHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	pollID, err := idParam(r, "pollID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	if h.broadcaster == nil {
		auth.WriteError(w, r, apperror.NewInternalError("event streaming is not configured", nil))
		return
	}

	// Subscribe before the existence check so a concurrent delete closes
	// this subscription.
	id, ch := h.broadcaster.Subscribe(pollID)
	defer h.broadcaster.Unsubscribe(pollID, id)
	if _, err := h.service.GetPoll(r.Context(), pollID); err != nil {
		auth.WriteError(w, r, err)
		return
	}

	if err := events.Stream(w, r, pollID, id, ch); err != nil {
		// Headers may already be sent, so the failure is only logged.
		slog.Warn("event stream ended with error",
			"poll_id", pollID,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
}
