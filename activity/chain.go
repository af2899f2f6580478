/*
chain.go - Activity modification chains

PURPOSE:
  An activity can be superseded by another pointing back at it through
  ModifiesID, forming a linked modification history. Chain models this
  explicitly as an arena of activity records plus a supersedes index,
  so "find the current version" and history traversal are deterministic
  and testable instead of relying on nullable self-references.
*/
package activity

import "github.com/munipay/payment-engine/schedule"

// Chain is an arena of activities with an explicit supersedes index.
type Chain struct {
	byID         map[schedule.ActivityID]Activity
	supersededBy map[schedule.ActivityID]schedule.ActivityID
}

// NewChain indexes the given activities. Each activity supersedes at
// most one predecessor; the index maps predecessor to successor.
func NewChain(activities []Activity) *Chain {
	c := &Chain{
		byID:         make(map[schedule.ActivityID]Activity, len(activities)),
		supersededBy: make(map[schedule.ActivityID]schedule.ActivityID, len(activities)),
	}
	for _, a := range activities {
		c.byID[a.ID] = a
		if a.ModifiesID != "" {
			c.supersededBy[a.ModifiesID] = a.ID
		}
	}
	return c
}

// Get returns the activity record by id.
func (c *Chain) Get(id schedule.ActivityID) (Activity, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Current walks the supersedes index forward to the head of the chain:
// the version no later activity modifies.
func (c *Chain) Current(id schedule.ActivityID) (Activity, bool) {
	a, ok := c.byID[id]
	if !ok {
		return Activity{}, false
	}
	for {
		next, superseded := c.supersededBy[a.ID]
		if !superseded {
			return a, true
		}
		a, ok = c.byID[next]
		if !ok {
			return Activity{}, false
		}
	}
}

// History walks backward from the given activity to the original,
// most recent first.
func (c *Chain) History(id schedule.ActivityID) []Activity {
	var out []Activity
	a, ok := c.byID[id]
	for ok {
		out = append(out, a)
		if a.ModifiesID == "" {
			break
		}
		a, ok = c.byID[a.ModifiesID]
	}
	return out
}
