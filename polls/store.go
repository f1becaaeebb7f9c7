package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	voteUniqueConstraint  = "votes_poll_id_voted_by_key"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrChoiceNotFound = errors.New("choice not found")
	ErrDuplicateVote  = errors.New("user already voted in this poll")
)

// Store persists polls, choices and votes. Reads return polls with their
// choices and each choice with its votes.
type Store interface {
	ListPolls(ctx context.Context, limit, offset int) ([]Poll, error)
	GetPoll(ctx context.Context, id int64) (*Poll, error)
	// GetPollOwner returns the creator of the poll without loading choices.
	GetPollOwner(ctx context.Context, id int64) (int64, error)
	CreatePoll(ctx context.Context, question string, createdBy int64) (*Poll, error)
	UpdatePoll(ctx context.Context, id int64, question string) (*Poll, error)
	// DeletePoll removes the poll; its choices and votes go with it.
	DeletePoll(ctx context.Context, id int64) error
	ListChoices(ctx context.Context, pollID int64) ([]Choice, error)
	CreateChoice(ctx context.Context, pollID int64, text string) (*Choice, error)
	// CreateVote returns ErrChoiceNotFound when the choice is not part of the
	// poll and ErrDuplicateVote when the user already voted in it.
	CreateVote(ctx context.Context, pollID, choiceID, userID int64) (*Vote, error)
}

type pgStore struct {
	db *pgxpool.Pool
}

// NewStore returns a Store backed by Postgres.
func NewStore(db *pgxpool.Pool) Store {
	return &pgStore{db: db}
}

func (s *pgStore) ListPolls(ctx context.Context, limit, offset int) ([]Poll, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, question, created_by, pub_date
		FROM polls
		ORDER BY pub_date, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	polls := []Poll{}
	for rows.Next() {
		var p Poll
		if err := rows.Scan(&p.ID, &p.Question, &p.CreatedBy, &p.PubDate); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}

	if len(polls) == 0 {
		return polls, nil
	}

	ids := make([]int64, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
	}
	choices, err := s.loadChoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range polls {
		polls[i].Choices = choicesFor(choices, polls[i].ID)
	}
	return polls, nil
}

func (s *pgStore) GetPoll(ctx context.Context, id int64) (*Poll, error) {
	var p Poll
	err := s.db.QueryRow(ctx, `
		SELECT id, question, created_by, pub_date
		FROM polls
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Question, &p.CreatedBy, &p.PubDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	choices, err := s.loadChoices(ctx, []int64{p.ID})
	if err != nil {
		return nil, err
	}
	p.Choices = choicesFor(choices, p.ID)
	return &p, nil
}

func (s *pgStore) GetPollOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := s.db.QueryRow(ctx, `SELECT created_by FROM polls WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPollNotFound
		}
		return 0, fmt.Errorf("failed to get poll owner: %w", err)
	}
	return owner, nil
}

func (s *pgStore) CreatePoll(ctx context.Context, question string, createdBy int64) (*Poll, error) {
	p := Poll{Question: question, CreatedBy: createdBy, Choices: []Choice{}}
	err := s.db.QueryRow(ctx, `
		INSERT INTO polls (question, created_by)
		VALUES ($1, $2)
		RETURNING id, pub_date`,
		question, createdBy,
	).Scan(&p.ID, &p.PubDate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert poll: %w", err)
	}
	return &p, nil
}

func (s *pgStore) UpdatePoll(ctx context.Context, id int64, question string) (*Poll, error) {
	tag, err := s.db.Exec(ctx, `UPDATE polls SET question = $1 WHERE id = $2`, question, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrPollNotFound
	}
	return s.GetPoll(ctx, id)
}

func (s *pgStore) DeletePoll(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (s *pgStore) ListChoices(ctx context.Context, pollID int64) ([]Choice, error) {
	if _, err := s.GetPollOwner(ctx, pollID); err != nil {
		return nil, err
	}
	choices, err := s.loadChoices(ctx, []int64{pollID})
	if err != nil {
		return nil, err
	}
	return choicesFor(choices, pollID), nil
}

func (s *pgStore) CreateChoice(ctx context.Context, pollID int64, text string) (*Choice, error) {
	c := Choice{Poll: pollID, ChoiceText: text, Votes: []Vote{}}
	err := s.db.QueryRow(ctx, `
		INSERT INTO choices (poll_id, choice_text)
		VALUES ($1, $2)
		RETURNING id`,
		pollID, text,
	).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to insert choice: %w", err)
	}
	return &c, nil
}

func (s *pgStore) CreateVote(ctx context.Context, pollID, choiceID, userID int64) (*Vote, error) {
	v := Vote{Choice: choiceID, Poll: pollID, VotedBy: userID}
	// Selecting the choice scoped to the poll rejects choices of other polls.
	err := s.db.QueryRow(ctx, `
		INSERT INTO votes (choice_id, poll_id, voted_by)
		SELECT c.id, c.poll_id, $3
		FROM choices c
		WHERE c.id = $1 AND c.poll_id = $2
		RETURNING id`,
		choiceID, pollID, userID,
	).Scan(&v.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChoiceNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == voteUniqueConstraint {
			return nil, ErrDuplicateVote
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}
	return &v, nil
}

// loadChoices fetches the choices of pollIDs with their votes, ordered by id.
func (s *pgStore) loadChoices(ctx context.Context, pollIDs []int64) ([]Choice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, poll_id, choice_text
		FROM choices
		WHERE poll_id = ANY($1)
		ORDER BY id`, pollIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	var choices []Choice
	for rows.Next() {
		c := Choice{Votes: []Vote{}}
		if err := rows.Scan(&c.ID, &c.Poll, &c.ChoiceText); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating choices: %w", err)
	}
	if len(choices) == 0 {
		return choices, nil
	}

	votes, err := s.loadVotes(ctx, pollIDs)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int, len(choices))
	for i, c := range choices {
		index[c.ID] = i
	}
	for _, v := range votes {
		if i, ok := index[v.Choice]; ok {
			choices[i].Votes = append(choices[i].Votes, v)
		}
	}
	return choices, nil
}

func (s *pgStore) loadVotes(ctx context.Context, pollIDs []int64) ([]Vote, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, choice_id, poll_id, voted_by
		FROM votes
		WHERE poll_id = ANY($1)
		ORDER BY id`, pollIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.Choice, &v.Poll, &v.VotedBy); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func choicesFor(all []Choice, pollID int64) []Choice {
	out := []Choice{}
	for _, c := range all {
		if c.Poll == pollID {
			out = append(out, c)
		}
	}
	return out
}
