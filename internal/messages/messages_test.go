package messages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkAccumulatesAndDrains(t *testing.T) {
	sink := &Sink{}
	sink.Info("loaded %d records", 3)
	sink.Error("could not save")
	sink.Success("done")

	assert.Equal(t, 1, sink.ErrorCount())

	msgs := sink.Drain()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Level: Info, Text: "loaded 3 records"}, msgs[0])
	assert.Equal(t, Message{Level: Error, Text: "could not save"}, msgs[1])

	// drained sink starts over
	assert.Equal(t, 0, sink.ErrorCount())
	assert.Empty(t, sink.Drain())
}

func TestDrainNeverNil(t *testing.T) {
	sink := &Sink{}
	assert.NotNil(t, sink.Drain())
}

func TestContextRoundTrip(t *testing.T) {
	ctx, sink := NewContext(context.Background())
	FromContext(ctx).Warning("careful")

	msgs := sink.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, Warning, msgs[0].Level)
}

func TestFromContextWithoutSinkIsSafe(t *testing.T) {
	sink := FromContext(context.Background())
	require.NotNil(t, sink)
	sink.Info("goes nowhere")
}
