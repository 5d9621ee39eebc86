package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subj
	f.data = data
	return &nats.PubAck{}, nil
}

func TestPublishEvent(t *testing.T) {
	publisher := &fakePublisher{}

	err := PublishEvent(publisher, "hedger.transaction_request", map[string]any{"retry": 1})
	require.NoError(t, err)
	assert.Equal(t, "hedger.transaction_request", publisher.subject)
	assert.JSONEq(t, `{"retry":1}`, string(publisher.data))

	publisher.err = errors.New("nats: timeout")
	assert.Error(t, PublishEvent(publisher, "hedger.transaction_request", 1))

	assert.ErrorIs(t, PublishEvent(nil, "hedger.transaction_request", 1), ErrNoPublisher)
}

func TestProcessWithTimeout(t *testing.T) {
	msg := &nats.Msg{Data: []byte(`{"data":{}}`)}

	err := ProcessWithTimeout(time.Second, msg, func(ctx context.Context, msg *nats.Msg) error {
		return nil
	})
	assert.NoError(t, err)

	expected := errors.New("handler failed")
	err = ProcessWithTimeout(time.Second, msg, func(ctx context.Context, msg *nats.Msg) error {
		return expected
	})
	assert.ErrorIs(t, err, expected)

	err = ProcessWithTimeout(10*time.Millisecond, msg, func(ctx context.Context, msg *nats.Msg) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	assert.ErrorContains(t, err, "processing timeout")
}
