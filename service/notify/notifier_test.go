package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOut(t *testing.T) {
	a := NewMockNotifier()
	b := NewMockNotifier()
	m := Multi{a, b}

	require.NoError(t, m.Notify(context.Background(), 42, "hello"))

	require.Len(t, a.GetMessages(), 1)
	require.Len(t, b.GetMessages(), 1)
	assert.Equal(t, int64(42), a.GetMessages()[0].UserID)
	assert.Equal(t, "hello", b.GetMessages()[0].Text)
}

func TestMultiOneFailureDoesNotStopOthers(t *testing.T) {
	a := NewMockNotifier()
	a.SetNotifyError(errors.New("telegram down"))
	b := NewMockNotifier()
	m := Multi{a, b}

	err := m.Notify(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram down")

	// The second notifier still got the message.
	assert.Len(t, b.GetMessages(), 1)
}

func TestMultiEmpty(t *testing.T) {
	var m Multi
	assert.NoError(t, m.Notify(context.Background(), 1, "x"))
}
