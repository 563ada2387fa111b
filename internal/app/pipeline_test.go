package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStage(t *testing.T) {
	ok := runStage("embed", PolicyAbort, func() (int, error) { return 42, nil })
	assert.True(t, ok.OK())
	assert.False(t, ok.Fatal())
	assert.Equal(t, 42, ok.Value)

	failed := runStage("embed", PolicyAbort, func() (int, error) { return 7, errors.New("down") })
	assert.False(t, failed.OK())
	assert.True(t, failed.Fatal())
	assert.Zero(t, failed.Value)

	degraded := runStage("retrieve", PolicyDegrade, func() ([]string, error) { return nil, errors.New("down") })
	assert.False(t, degraded.OK())
	assert.False(t, degraded.Fatal())
	assert.Equal(t, "retrieve", degraded.Stage)
}

func TestQueryStateString(t *testing.T) {
	assert.Equal(t, "completed", QueryCompleted.String())
	assert.Equal(t, "retrieval_failed", QueryRetrievalFailed.String())
	assert.Equal(t, "unknown", QueryState(99).String())
}
