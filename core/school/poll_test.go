package school

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoll() Poll {
	return Poll{
		ID:    "p1",
		Title: "Trip destination",
		Options: []PollOption{
			{ID: "o1", Text: "Zanzibar"},
			{ID: "o2", Text: "Arusha"},
			{ID: "o3", Text: "Mwanza"},
		},
		Ledger: map[string]string{},
	}
}

func assertConsistent(t *testing.T, p Poll) {
	t.Helper()
	assert.Equal(t, len(p.Ledger), p.TotalVotes(), "votes must match the number of voters")
}

func TestPoll_CastVote(t *testing.T) {
	p := newPoll()

	changed, err := p.CastVote("u1", "o1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, p.Options[0].Votes)
	assertConsistent(t, p)

	// same option: no-op
	before := p.Clone()
	changed, err = p.CastVote("u1", "o1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, p)

	// moving the vote
	changed, err = p.CastVote("u1", "o2")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, p.Options[0].Votes)
	assert.Equal(t, 1, p.Options[1].Votes)
	assert.Equal(t, "o2", p.Ledger["u1"])
	assertConsistent(t, p)

	_, err = p.CastVote("u2", "o2")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Options[1].Votes)
	assertConsistent(t, p)

	_, err = p.CastVote("u2", "nope")
	assert.Equal(t, ErrUnknownOption, err)
	assertConsistent(t, p)
}

func TestPoll_CastVote_FloorsAtZero(t *testing.T) {
	p := newPoll()
	p.Ledger["u1"] = "o1" // count out of sync: o1 has no votes

	changed, err := p.CastVote("u1", "o3")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, p.Options[0].Votes)
	assert.Equal(t, 1, p.Options[2].Votes)
}

func TestPoll_Reconcile(t *testing.T) {
	p := newPoll()
	p.Options[0].Votes = 7
	p.Ledger = map[string]string{"u1": "o2", "u2": "o2", "u3": "gone"}

	p.Reconcile()
	assert.Equal(t, 0, p.Options[0].Votes)
	assert.Equal(t, 2, p.Options[1].Votes)
	assert.NotContains(t, p.Ledger, "u3")
	assertConsistent(t, p)
}

func TestPoll_ReplaceOptions(t *testing.T) {
	p := newPoll()
	_, _ = p.CastVote("u1", "o1")
	_, _ = p.CastVote("u2", "o3")

	p.ReplaceOptions([]PollOption{{ID: "o1", Text: "Zanzibar island"}, {ID: "o4", Text: "Dodoma"}})
	require.Len(t, p.Options, 2)
	assert.Equal(t, 1, p.Options[0].Votes)
	assert.Equal(t, 0, p.Options[1].Votes)
	assert.NotContains(t, p.Ledger, "u2")
	assertConsistent(t, p)
}

func TestPoll_Clone(t *testing.T) {
	p := newPoll()
	_, _ = p.CastVote("u1", "o1")

	clone := p.Clone()
	_, _ = clone.CastVote("u1", "o2")

	assert.Equal(t, "o1", p.Ledger["u1"])
	assert.Equal(t, 1, p.Options[0].Votes)
}

func TestPoll_IsExpired(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	p := newPoll()
	p.ExpiresAt = now.Add(time.Minute)
	assert.False(t, p.IsExpired(now))
	assert.True(t, p.IsExpired(now.Add(time.Minute)))
}

func TestDecodeLedger(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "null", raw: "null", want: map[string]string{}},
		{name: "legacy list", raw: `["u1","u2"]`, want: map[string]string{}},
		{name: "garbage", raw: `{oops`, want: map[string]string{}},
		{name: "mapping", raw: `{"u1":"o1","u2":"o2"}`, want: map[string]string{"u1": "o1", "u2": "o2"}},
		{name: "non string values dropped", raw: `{"u1":"o1","u2":3}`, want: map[string]string{"u1": "o1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeLedger([]byte(tt.raw)))
		})
	}
}

func TestPoll_ResetVote(t *testing.T) {
	p := newPoll()
	_, _ = p.CastVote("u1", "o1")
	_, _ = p.CastVote("u2", "o2")

	// u1 moved to o2, then back
	_, _ = p.CastVote("u1", "o2")
	p.ResetVote("u1", "o1")
	assert.Equal(t, "o1", p.Ledger["u1"])
	assert.Equal(t, 1, p.Options[0].Votes)
	assert.Equal(t, 1, p.Options[1].Votes)
	assertConsistent(t, p)

	// first vote taken back, other voters untouched
	_, _ = p.CastVote("u3", "o3")
	p.ResetVote("u3", "")
	assert.NotContains(t, p.Ledger, "u3")
	assert.Equal(t, 0, p.Options[2].Votes)
	assert.Equal(t, "o2", p.Ledger["u2"])
	assertConsistent(t, p)
}
