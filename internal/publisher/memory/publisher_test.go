package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

func TestPublisherRecordsEncodedMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()
	id1, err := pub.Publish(ctx, "ingest-runs", archive.RunReport{RunID: "r1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(ctx, "ingest-issues", archive.IssueEvent{IssueID: "spring-1995", Outcome: archive.OutcomeCreated})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "ingest-runs", msgs[0].Topic)

	var decoded archive.IssueEvent
	require.NoError(t, json.Unmarshal(msgs[1].Data, &decoded))
	require.Equal(t, "spring-1995", decoded.IssueID)
	require.Equal(t, archive.OutcomeCreated, decoded.Outcome)

	runs := pub.Topic("ingest-runs")
	require.Len(t, runs, 1)
	require.Equal(t, "r1", runs[0].Payload.(archive.RunReport).RunID)

	msgs[0].Topic = "modified"
	require.Equal(t, "ingest-runs", pub.Messages()[0].Topic)
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "runs", make(chan int))
	require.ErrorContains(t, err, "marshal payload")

	pub.FailWith(errors.New("unavailable"))
	_, err = pub.Publish(context.Background(), "runs", "x")
	require.EqualError(t, err, "unavailable")
	require.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "runs", "x")
	require.NoError(t, err)
	require.Len(t, pub.Topic("runs"), 1)
}
