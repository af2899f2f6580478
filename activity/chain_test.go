package activity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/schedule"
)

func chainActivity(id, modifies string) activity.Activity {
	return activity.Activity{
		ID:              schedule.ActivityID(id),
		AppropriationID: "appr-1",
		Status:          activity.StatusGranted,
		Start:           schedule.NewDate(2025, time.January, 1),
		ModifiesID:      schedule.ActivityID(modifies),
	}
}

func TestChain_CurrentWalksToHead(t *testing.T) {
	chain := activity.NewChain([]activity.Activity{
		chainActivity("act-1", ""),
		chainActivity("act-2", "act-1"),
		chainActivity("act-3", "act-2"),
	})

	for _, id := range []schedule.ActivityID{"act-1", "act-2", "act-3"} {
		current, ok := chain.Current(id)
		require.True(t, ok, "current of %s", id)
		assert.Equal(t, schedule.ActivityID("act-3"), current.ID)
	}
}

func TestChain_HistoryMostRecentFirst(t *testing.T) {
	chain := activity.NewChain([]activity.Activity{
		chainActivity("act-1", ""),
		chainActivity("act-2", "act-1"),
		chainActivity("act-3", "act-2"),
	})

	history := chain.History("act-3")
	require.Len(t, history, 3)
	assert.Equal(t, schedule.ActivityID("act-3"), history[0].ID)
	assert.Equal(t, schedule.ActivityID("act-2"), history[1].ID)
	assert.Equal(t, schedule.ActivityID("act-1"), history[2].ID)
}

func TestChain_UnmodifiedActivityIsItsOwnCurrent(t *testing.T) {
	chain := activity.NewChain([]activity.Activity{
		chainActivity("act-1", ""),
	})

	current, ok := chain.Current("act-1")
	require.True(t, ok)
	assert.Equal(t, schedule.ActivityID("act-1"), current.ID)
	assert.Len(t, chain.History("act-1"), 1)
}

func TestChain_UnknownActivity(t *testing.T) {
	chain := activity.NewChain(nil)

	_, ok := chain.Current("missing")
	assert.False(t, ok)
	assert.Empty(t, chain.History("missing"))
}
