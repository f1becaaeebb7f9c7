package polls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/polls-go/events"
)

// memStore is an in-memory Store with the same sentinel errors and cascade
// behaviour as the Postgres store.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	clock   time.Time
	polls   map[int64]Poll
	choices map[int64]Choice
	votes   map[int64]Vote
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		polls:   make(map[int64]Poll),
		choices: make(map[int64]Choice),
		votes:   make(map[int64]Vote),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) nestedChoices(pollID int64) []Choice {
	out := []Choice{}
	for _, c := range m.choices {
		if c.Poll != pollID {
			continue
		}
		c.Votes = []Vote{}
		for _, v := range m.votes {
			if v.Choice == c.ID {
				c.Votes = append(c.Votes, v)
			}
		}
		sort.Slice(c.Votes, func(i, j int) bool { return c.Votes[i].ID < c.Votes[j].ID })
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListPolls(ctx context.Context, limit, offset int) ([]Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Poll, 0, len(m.polls))
	for _, p := range m.polls {
		p.Choices = m.nestedChoices(p.ID)
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PubDate.Equal(all[j].PubDate) {
			return all[i].PubDate.Before(all[j].PubDate)
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return []Poll{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) GetPoll(ctx context.Context, id int64) (*Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, ErrPollNotFound
	}
	p.Choices = m.nestedChoices(id)
	return &p, nil
}

func (m *memStore) GetPollOwner(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return 0, ErrPollNotFound
	}
	return p.CreatedBy, nil
}

func (m *memStore) CreatePoll(ctx context.Context, question string, createdBy int64) (*Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	p := Poll{ID: m.id(), Question: question, CreatedBy: createdBy, PubDate: m.clock}
	m.polls[p.ID] = p
	p.Choices = []Choice{}
	return &p, nil
}

func (m *memStore) UpdatePoll(ctx context.Context, id int64, question string) (*Poll, error) {
	m.mu.Lock()
	p, ok := m.polls[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrPollNotFound
	}
	p.Question = question
	m.polls[id] = p
	m.mu.Unlock()
	return m.GetPoll(ctx, id)
}

func (m *memStore) DeletePoll(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[id]; !ok {
		return ErrPollNotFound
	}
	delete(m.polls, id)
	for cid, c := range m.choices {
		if c.Poll == id {
			delete(m.choices, cid)
		}
	}
	for vid, v := range m.votes {
		if v.Poll == id {
			delete(m.votes, vid)
		}
	}
	return nil
}

func (m *memStore) ListChoices(ctx context.Context, pollID int64) ([]Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[pollID]; !ok {
		return nil, ErrPollNotFound
	}
	return m.nestedChoices(pollID), nil
}

func (m *memStore) CreateChoice(ctx context.Context, pollID int64, text string) (*Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[pollID]; !ok {
		return nil, ErrPollNotFound
	}
	c := Choice{ID: m.id(), Poll: pollID, ChoiceText: text}
	m.choices[c.ID] = c
	c.Votes = []Vote{}
	return &c, nil
}

func (m *memStore) CreateVote(ctx context.Context, pollID, choiceID, userID int64) (*Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.choices[choiceID]
	if !ok || c.Poll != pollID {
		return nil, ErrChoiceNotFound
	}
	for _, v := range m.votes {
		if v.Poll == pollID && v.VotedBy == userID {
			return nil, ErrDuplicateVote
		}
	}
	v := Vote{ID: m.id(), Choice: choiceID, Poll: pollID, VotedBy: userID}
	m.votes[v.ID] = v
	return &v, nil
}

func (m *memStore) voteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes)
}

func (m *memStore) choiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.choices)
}

// recordingPublisher keeps published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ev events.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev.Type)
	return 1
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
