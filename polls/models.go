// Package polls serves polls, their choices and the votes cast on them.
package polls

import (
	"math"
	"time"
)

// PageSize is the number of polls returned per list page.
const PageSize = 20

// MaxPage is the highest page whose offset fits in an int.
const MaxPage = math.MaxInt/PageSize + 1

// Poll is a question owned by the user who created it.
type Poll struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	CreatedBy int64     `json:"created_by"`
	PubDate   time.Time `json:"pub_date"`
	Choices   []Choice  `json:"choices"`
}

// Choice is one answer option of a poll.
type Choice struct {
	ID         int64  `json:"id"`
	Poll       int64  `json:"poll"`
	ChoiceText string `json:"choice_text"`
	Votes      []Vote `json:"votes"`
}

// Vote records a user's pick of a choice. A user votes at most once per poll.
type Vote struct {
	ID      int64 `json:"id"`
	Choice  int64 `json:"choice"`
	Poll    int64 `json:"poll"`
	VotedBy int64 `json:"voted_by"`
}

// PollRequest is the body of poll create and update requests.
type PollRequest struct {
	Question string `json:"question" validate:"required,max=100"`
}

// ChoiceRequest is the body of a create choice request.
type ChoiceRequest struct {
	ChoiceText string `json:"choice_text" validate:"required,max=100"`
}

// PollListQuery selects a page of the poll list.
type PollListQuery struct {
	Page int
}

func (q PollListQuery) offset() int {
	if q.Page < 1 {
		return 0
	}
	if q.Page > MaxPage {
		return (MaxPage - 1) * PageSize
	}
	return (q.Page - 1) * PageSize
}
