package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "harbour-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "movements")
	require.NoError(t, err)
	return srv, topic
}

func TestPublishSendsJSONPayload(t *testing.T) {
	srv, topic := newTestTopic(t)
	pub := New(topic)
	defer pub.Close()

	id, err := pub.Publish(context.Background(), map[string]any{"records": 2}, map[string]string{"run_id": "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"records":2}`, string(msgs[0].Data))
	assert.Equal(t, "abc", msgs[0].Attributes["run_id"])
}

func TestPublishWithoutTopic(t *testing.T) {
	_, err := New(nil).Publish(context.Background(), "x", nil)
	assert.Error(t, err)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	_, topic := newTestTopic(t)
	pub := New(topic)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), make(chan int), nil)
	assert.ErrorContains(t, err, "marshal payload")
}
