package polls

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/polls-go/testutil"
)

func insertUser(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username, email, password) VALUES ($1, '', 'x') RETURNING id`, username,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}
	return id
}

func TestPgStore(t *testing.T) {
	pool := testutil.SetupTestPool(t, "test_polls")
	store := NewStore(pool)
	ctx := context.Background()

	owner := insertUser(t, pool, "owner")
	voter := insertUser(t, pool, "voter")

	poll, err := store.CreatePoll(ctx, "Which database?", owner)
	if err != nil {
		t.Fatal(err)
	}
	if poll.ID == 0 || poll.PubDate.IsZero() {
		t.Fatalf("Expected id and pub_date to be set: %+v", poll)
	}

	pg, err := store.CreateChoice(ctx, poll.ID, "Postgres")
	if err != nil {
		t.Fatal(err)
	}
	lite, err := store.CreateChoice(ctx, poll.ID, "SQLite")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("choice for missing poll", func(t *testing.T) {
		if _, err := store.CreateChoice(ctx, 999999, "x"); !errors.Is(err, ErrPollNotFound) {
			t.Errorf("Expected ErrPollNotFound, got %v", err)
		}
	})

	t.Run("vote uniqueness", func(t *testing.T) {
		if _, err := store.CreateVote(ctx, poll.ID, pg.ID, voter); err != nil {
			t.Fatal(err)
		}
		if _, err := store.CreateVote(ctx, poll.ID, lite.ID, voter); !errors.Is(err, ErrDuplicateVote) {
			t.Errorf("Expected ErrDuplicateVote, got %v", err)
		}
	})

	t.Run("vote for choice of another poll", func(t *testing.T) {
		other, err := store.CreatePoll(ctx, "Other", owner)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := store.CreateVote(ctx, other.ID, pg.ID, owner); !errors.Is(err, ErrChoiceNotFound) {
			t.Errorf("Expected ErrChoiceNotFound, got %v", err)
		}
	})

	t.Run("nested read", func(t *testing.T) {
		got, err := store.GetPoll(ctx, poll.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Choices) != 2 {
			t.Fatalf("Expected 2 choices, got %d", len(got.Choices))
		}
		if len(got.Choices[0].Votes) != 1 || got.Choices[0].Votes[0].VotedBy != voter {
			t.Errorf("Unexpected votes %+v", got.Choices[0].Votes)
		}
		if len(got.Choices[1].Votes) != 0 {
			t.Errorf("Expected no votes on second choice")
		}
	})

	t.Run("update", func(t *testing.T) {
		updated, err := store.UpdatePoll(ctx, poll.ID, "Which SQL database?")
		if err != nil {
			t.Fatal(err)
		}
		if updated.Question != "Which SQL database?" || len(updated.Choices) != 2 {
			t.Errorf("Unexpected poll %+v", updated)
		}
		if _, err := store.UpdatePoll(ctx, 999999, "x"); !errors.Is(err, ErrPollNotFound) {
			t.Errorf("Expected ErrPollNotFound, got %v", err)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		if err := store.DeletePoll(ctx, poll.ID); err != nil {
			t.Fatal(err)
		}
		var remaining int
		err := pool.QueryRow(ctx,
			`SELECT (SELECT count(*) FROM choices WHERE poll_id = $1) + (SELECT count(*) FROM votes WHERE poll_id = $1)`,
			poll.ID,
		).Scan(&remaining)
		if err != nil {
			t.Fatal(err)
		}
		if remaining != 0 {
			t.Errorf("Expected cascade delete, %d rows remain", remaining)
		}
		if err := store.DeletePoll(ctx, poll.ID); !errors.Is(err, ErrPollNotFound) {
			t.Errorf("Expected ErrPollNotFound, got %v", err)
		}
		if _, err := store.ListChoices(ctx, poll.ID); !errors.Is(err, ErrPollNotFound) {
			t.Errorf("Expected ErrPollNotFound, got %v", err)
		}
	})
}

func TestPgStoreListPolls(t *testing.T) {
	pool := testutil.SetupTestPool(t, "test_polls_list")
	store := NewStore(pool)
	ctx := context.Background()
	owner := insertUser(t, pool, "lister")

	for i := 0; i < PageSize+3; i++ {
		if _, err := store.CreatePoll(ctx, fmt.Sprintf("poll %d", i), owner); err != nil {
			t.Fatal(err)
		}
	}

	first, err := store.ListPolls(ctx, PageSize, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != PageSize {
		t.Fatalf("Expected %d polls, got %d", PageSize, len(first))
	}
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if cur.PubDate.Before(prev.PubDate) || (cur.PubDate.Equal(prev.PubDate) && cur.ID < prev.ID) {
			t.Fatalf("Polls out of order at %d", i)
		}
		if cur.Choices == nil {
			t.Fatalf("Expected empty choices slice, got nil")
		}
	}

	rest, err := store.ListPolls(ctx, PageSize, PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 3 {
		t.Errorf("Expected 3 polls on second page, got %d", len(rest))
	}
}
