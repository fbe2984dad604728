package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/orchestrator"
)

func TestAppendAssignsID(t *testing.T) {
	store := NewInMemoryStore()

	id, err := store.Append(Record{
		Query:  core.Query{Text: "q1"},
		Result: &orchestrator.Result{FinalAnswer: "a1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "q1", record.Query.Text)
	assert.Equal(t, "a1", record.Result.FinalAnswer)
}

func TestGetUnknownID(t *testing.T) {
	store := NewInMemoryStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestRecentNewestFirst(t *testing.T) {
	store := NewInMemoryStore()

	for i, text := range []string{"first", "second", "third"} {
		_, err := store.Append(Record{
			Query:     core.Query{Text: text},
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	recent := store.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Query.Text)
	assert.Equal(t, "second", recent[1].Query.Text)

	assert.Len(t, store.Recent(10), 3)
	assert.Nil(t, store.Recent(0))
	assert.Equal(t, 3, store.Len())
}
