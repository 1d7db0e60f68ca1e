package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

var testNow = time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)

func TestNewPost_Validation(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	author := id.EmployeeID(uuid.New())

	t.Run("trims the body", func(t *testing.T) {
		post, err := NewPost(id.PostID(uuid.New()), orgID, author, "  hello team  ", nil, testNow)
		require.NoError(t, err)
		assert.Equal(t, "hello team", post.Body)
		assert.False(t, post.Edited)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		_, err := NewPost(id.PostID(uuid.New()), orgID, author, "   ", nil, testNow)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		_, err := NewPost(id.PostID(uuid.New()), orgID, author, strings.Repeat("x", maxPostBody+1), nil, testNow)
		require.Error(t, err)
	})
}

func TestPost_EditAndDelete(t *testing.T) {
	author := id.EmployeeID(uuid.New())
	stranger := id.EmployeeID(uuid.New())
	post, err := NewPost(id.PostID(uuid.New()), id.OrgID(uuid.New()), author, "original", nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(post.CanEdit(stranger)))
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(post.CanDelete(stranger)))
	require.NoError(t, post.CanEdit(author))

	later := testNow.Add(time.Hour)
	require.NoError(t, post.ApplyEdit("updated", later))
	assert.True(t, post.Edited)
	assert.Equal(t, later, post.UpdatedAt)

	post.ApplyDelete(later)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(post.CanEdit(author)),
		"a deleted post reads as missing even to its author")
}

func TestNewPoll_Validation(t *testing.T) {
	closesAt := testNow.Add(24 * time.Hour)

	tests := []struct {
		name     string
		question string
		options  []string
		closesAt time.Time
		wantErr  bool
	}{
		{"valid", "lunch spot?", []string{"thai", "pizza"}, closesAt, false},
		{"empty question", "  ", []string{"a", "b"}, closesAt, true},
		{"one option", "q?", []string{"only"}, closesAt, true},
		{"too many options", "q?", []string{"a", "b", "c", "d", "e", "f", "g"}, closesAt, true},
		{"duplicate options", "q?", []string{"same", "same"}, closesAt, true},
		{"blank options filtered then too few", "q?", []string{"a", "  "}, closesAt, true},
		{"deadline in the past", "q?", []string{"a", "b"}, testNow.Add(-time.Minute), true},
		{"deadline exactly now", "q?", []string{"a", "b"}, testNow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoll(tt.question, tt.options, false, tt.closesAt, testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPoll_VotingWindow(t *testing.T) {
	poll, err := NewPoll("q?", []string{"a", "b"}, false, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)

	assert.True(t, poll.AcceptsVotes(testNow))
	assert.True(t, poll.AcceptsVotes(poll.ClosesAt), "a vote at the deadline instant still counts")
	assert.False(t, poll.AcceptsVotes(poll.ClosesAt.Add(time.Nanosecond)))

	assert.False(t, poll.Expired(poll.ClosesAt))
	assert.True(t, poll.Expired(poll.ClosesAt.Add(time.Nanosecond)))

	poll.Closed = true
	assert.False(t, poll.AcceptsVotes(testNow), "a closed poll takes no votes regardless of deadline")
}

func TestPoll_ValidateChoices(t *testing.T) {
	single, err := NewPoll("q?", []string{"a", "b", "c"}, false, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	multi, err := NewPoll("q?", []string{"a", "b", "c"}, true, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)

	assert.NoError(t, single.ValidateChoices([]int{1}))
	assert.Error(t, single.ValidateChoices(nil))
	assert.Error(t, single.ValidateChoices([]int{0, 1}), "single choice rejects multiple options")
	assert.Error(t, single.ValidateChoices([]int{3}), "index out of range")
	assert.Error(t, single.ValidateChoices([]int{-1}))

	assert.NoError(t, multi.ValidateChoices([]int{0, 2}))
	assert.Error(t, multi.ValidateChoices([]int{1, 1}), "duplicate indexes")
}

func TestPoll_Tally(t *testing.T) {
	poll, err := NewPoll("q?", []string{"a", "b", "c"}, true, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)

	ballots := []*Ballot{
		{Employee: id.EmployeeID(uuid.New()), Choices: []int{0, 2}},
		{Employee: id.EmployeeID(uuid.New()), Choices: []int{2}},
	}
	res := poll.Tally(ballots)

	assert.Equal(t, 2, res.TotalBallots)
	require.Len(t, res.Options, 3)
	assert.Equal(t, 1, res.Options[0].Votes)
	assert.Equal(t, 0, res.Options[1].Votes)
	assert.Equal(t, 2, res.Options[2].Votes)

	empty := poll.Tally(nil)
	assert.Equal(t, 0, empty.TotalBallots)
	assert.Len(t, empty.Options, 3, "options are listed even with no ballots")
}
