package polls

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/events"
	"github.com/user/polls-go/validation"
)

const (
	msgCannotDeletePoll   = "You can not delete this poll."
	msgCannotUpdatePoll   = "You can not update this poll."
	msgCannotCreateChoice = "You can not create choice for this poll."
	msgDuplicateVote      = "The fields poll, voted_by must make a unique set."
)

// PollService is the set of poll operations exposed over HTTP. userID is
// always the authenticated requester.
type PollService interface {
	ListPolls(ctx context.Context, query PollListQuery) ([]Poll, error)
	GetPoll(ctx context.Context, id int64) (*Poll, error)
	CreatePoll(ctx context.Context, req PollRequest, userID int64) (*Poll, error)
	UpdatePoll(ctx context.Context, id int64, req PollRequest, userID int64) (*Poll, error)
	DeletePoll(ctx context.Context, id int64, userID int64) error
	ListChoices(ctx context.Context, pollID int64) ([]Choice, error)
	CreateChoice(ctx context.Context, pollID int64, req ChoiceRequest, userID int64) (*Choice, error)
	Vote(ctx context.Context, pollID, choiceID, userID int64) (*Vote, error)
}

// Publisher receives the change events of polls.
type Publisher interface {
	Publish(ev events.Event) int
}

type pollServiceImpl struct {
	store     Store
	publisher Publisher
}

// NewPollService returns a PollService over store. publisher may be nil.
func NewPollService(store Store, publisher Publisher) PollService {
	return &pollServiceImpl{store: store, publisher: publisher}
}

func (s *pollServiceImpl) publish(eventType string, pollID int64, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{Type: eventType, PollID: pollID, Data: data})
}

func (s *pollServiceImpl) ListPolls(ctx context.Context, query PollListQuery) ([]Poll, error) {
	polls, err := s.store.ListPolls(ctx, PageSize, query.offset())
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list polls", err)
	}
	return polls, nil
}

func (s *pollServiceImpl) GetPoll(ctx context.Context, id int64) (*Poll, error) {
	poll, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to get poll")
	}
	return poll, nil
}

func (s *pollServiceImpl) CreatePoll(ctx context.Context, req PollRequest, userID int64) (*Poll, error) {
	req.Question = strings.TrimSpace(req.Question)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	poll, err := s.store.CreatePoll(ctx, req.Question, userID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to create poll", err)
	}
	slog.Info("poll created", "poll_id", poll.ID, "user_id", userID)
	return poll, nil
}

func (s *pollServiceImpl) UpdatePoll(ctx context.Context, id int64, req PollRequest, userID int64) (*Poll, error) {
	if err := s.requireOwner(ctx, id, userID, msgCannotUpdatePoll); err != nil {
		return nil, err
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	poll, err := s.store.UpdatePoll(ctx, id, req.Question)
	if err != nil {
		return nil, mapStoreError(err, "failed to update poll")
	}
	s.publish(events.PollUpdated, poll.ID, poll)
	return poll, nil
}

func (s *pollServiceImpl) DeletePoll(ctx context.Context, id int64, userID int64) error {
	if err := s.requireOwner(ctx, id, userID, msgCannotDeletePoll); err != nil {
		return err
	}
	if err := s.store.DeletePoll(ctx, id); err != nil {
		return mapStoreError(err, "failed to delete poll")
	}

	slog.Info("poll deleted", "poll_id", id, "user_id", userID)
	s.publish(events.PollDeleted, id, nil)
	return nil
}

func (s *pollServiceImpl) ListChoices(ctx context.Context, pollID int64) ([]Choice, error) {
	choices, err := s.store.ListChoices(ctx, pollID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list choices")
	}
	return choices, nil
}

func (s *pollServiceImpl) CreateChoice(ctx context.Context, pollID int64, req ChoiceRequest, userID int64) (*Choice, error) {
	if err := s.requireOwner(ctx, pollID, userID, msgCannotCreateChoice); err != nil {
		return nil, err
	}
	req.ChoiceText = strings.TrimSpace(req.ChoiceText)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	choice, err := s.store.CreateChoice(ctx, pollID, req.ChoiceText)
	if err != nil {
		return nil, mapStoreError(err, "failed to create choice")
	}
	s.publish(events.ChoiceCreated, pollID, choice)
	return choice, nil
}

func (s *pollServiceImpl) Vote(ctx context.Context, pollID, choiceID, userID int64) (*Vote, error) {
	if _, err := s.store.GetPollOwner(ctx, pollID); err != nil {
		return nil, mapStoreError(err, "failed to get poll")
	}

	vote, err := s.store.CreateVote(ctx, pollID, choiceID, userID)
	if err != nil {
		if errors.Is(err, ErrDuplicateVote) {
			return nil, apperror.NewFieldError(apperror.NonFieldErrors, msgDuplicateVote)
		}
		return nil, mapStoreError(err, "failed to cast vote")
	}
	s.publish(events.VoteCast, pollID, vote)
	return vote, nil
}

// requireOwner returns a 404 when the poll is missing and a 403 carrying msg
// when userID did not create it.
func (s *pollServiceImpl) requireOwner(ctx context.Context, pollID, userID int64, msg string) error {
	owner, err := s.store.GetPollOwner(ctx, pollID)
	if err != nil {
		return mapStoreError(err, "failed to get poll")
	}
	if owner != userID {
		return apperror.NewPermissionError(msg)
	}
	return nil
}

func mapStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, ErrPollNotFound):
		return apperror.NewNotFoundError("Not found.", err)
	case errors.Is(err, ErrChoiceNotFound):
		return apperror.NewNotFoundError("Not found.", err)
	default:
		return apperror.NewDatabaseError(msg, err)
	}
}
