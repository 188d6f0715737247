package school

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnknownOption = errors.New("unknown poll option")
	ErrPollExpired   = errors.New("poll has expired")
)

type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type Poll struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Options     []PollOption `json:"options"`
	IsAnonymous bool         `json:"is_anonymous"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	TargetClass *string      `json:"target_class"`
	CreatedByID string       `json:"created_by_id"`

	// Ledger maps a user id to the id of the option they voted for.
	Ledger map[string]string `json:"-"`
}

func (p Poll) ItemID() string  { return p.ID }
func (p Poll) Target() *string { return p.TargetClass }

// Clone returns a deep copy of the poll.
func (p Poll) Clone() Poll {
	clone := p
	clone.Options = append([]PollOption(nil), p.Options...)
	clone.Ledger = make(map[string]string, len(p.Ledger))
	for uid, optID := range p.Ledger {
		clone.Ledger[uid] = optID
	}
	return clone
}

func (p Poll) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// VoteOf returns the id of the option `userID` voted for.
func (p Poll) VoteOf(userID string) (string, bool) {
	optID, ok := p.Ledger[userID]
	return optID, ok
}

func (p Poll) HasVoted(userID string) bool {
	_, ok := p.Ledger[userID]
	return ok
}

func (p Poll) TotalVotes() int {
	var total int
	for _, opt := range p.Options {
		total += opt.Votes
	}
	return total
}

func (p Poll) optionIndex(optionID string) int {
	for i, opt := range p.Options {
		if opt.ID == optionID {
			return i
		}
	}
	return -1
}

// CastVote records the vote of `userID` for `optionID`, moving any previous vote.
// It reports false when the user already voted for that option: nothing changes then.
func (p *Poll) CastVote(userID, optionID string) (bool, error) {
	newIdx := p.optionIndex(optionID)
	if newIdx < 0 {
		return false, ErrUnknownOption
	}

	prevID, voted := p.Ledger[userID]
	if voted && prevID == optionID {
		return false, nil
	}
	if voted {
		if prevIdx := p.optionIndex(prevID); prevIdx >= 0 && p.Options[prevIdx].Votes > 0 {
			p.Options[prevIdx].Votes--
		}
	}
	p.Options[newIdx].Votes++

	if p.Ledger == nil {
		p.Ledger = make(map[string]string)
	}
	p.Ledger[userID] = optionID
	return true, nil
}

// ResetVote sets the vote of `userID` back to `optionID`, or removes it when `optionID` is empty,
// and recounts the votes.
func (p *Poll) ResetVote(userID, optionID string) {
	if p.Ledger == nil {
		p.Ledger = make(map[string]string)
	}
	if optionID == "" {
		delete(p.Ledger, userID)
	} else {
		p.Ledger[userID] = optionID
	}
	p.Reconcile()
}

// Reconcile drops ledger entries pointing to unknown options and recounts the votes from the ledger,
// so that the sum of the option votes always equals the number of voters.
func (p *Poll) Reconcile() {
	if p.Ledger == nil {
		p.Ledger = make(map[string]string)
	}
	counts := make(map[string]int, len(p.Options))
	for uid, optID := range p.Ledger {
		if p.optionIndex(optID) < 0 {
			delete(p.Ledger, uid)
			continue
		}
		counts[optID]++
	}
	for i := range p.Options {
		p.Options[i].Votes = counts[p.Options[i].ID]
	}
}

// ReplaceOptions sets the poll options. Options keep their votes when their id is kept.
func (p *Poll) ReplaceOptions(options []PollOption) {
	p.Options = append([]PollOption(nil), options...)
	p.Reconcile()
}

// DecodeLedger reads a stored vote ledger. Ledgers written by older clients were lists of voter ids
// without the chosen option: anything that is not an object of user id to option id reads as empty.
func DecodeLedger(raw []byte) map[string]string {
	ledger := make(map[string]string)
	if len(raw) == 0 {
		return ledger
	}
	var entries map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return ledger
	}
	for uid, optID := range entries {
		if s, ok := optID.(string); ok && uid != "" && s != "" {
			ledger[uid] = s
		}
	}
	return ledger
}
