package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_BeforeStartIsError(t *testing.T) {
	b, err := New(Config{Port: 18222})
	require.NoError(t, err)
	err = b.Publish(SubjectMention, []byte("hi"))
	assert.Error(t, err)
}

func TestStartPublishSubscribe_RoundTrips(t *testing.T) {
	b, err := New(Config{Port: 18223})
	require.NoError(t, err)
	require.NoError(t, b.Start())
	defer b.Shutdown()

	received := make(chan []byte, 1)
	sub, err := b.Subscribe(SubjectMeetingTurn, func(payload []byte) {
		received <- payload
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(SubjectMeetingTurn, []byte("turn-1")))

	select {
	case payload := <-received:
		assert.Equal(t, "turn-1", string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestStart_IsIdempotent(t *testing.T) {
	b, err := New(Config{Port: 18224})
	require.NoError(t, err)
	require.NoError(t, b.Start())
	defer b.Shutdown()
	assert.NoError(t, b.Start())
}
