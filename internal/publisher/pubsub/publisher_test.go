package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "magazine-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishUsesDefaultTopic(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "ingest-runs")
	require.NoError(t, err)

	pub := New(client, "ingest-runs")
	t.Cleanup(pub.Close)

	id, err := pub.Publish(ctx, "", map[string]string{"run_id": "r1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	require.Equal(t, "r1", payload["run_id"])
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "t").Publish(context.Background(), "", "x")
	require.Error(t, err)

	client, _ := newTestClient(t)
	pub := New(client, "")
	_, err = pub.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "missing-topic", "x")
	require.Error(t, err)
	pub.Close()
}

func TestCarrierKeys(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	require.Equal(t, "00-abc", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
}
