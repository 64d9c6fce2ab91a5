package notify

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ActivityEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ActivityEvent, 0),
	}
}

// PublishActivity records the event and returns any configured error.
func (m *MockPublisher) PublishActivity(ctx context.Context, event *ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ActivityEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// SetPublishError configures the mock to return an error on PublishActivity.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// MockNotifier is a mock implementation of Notifier for testing.
type MockNotifier struct {
	mu          sync.RWMutex
	messages    []MockMessage
	notifyError error
}

// MockMessage is one delivery recorded by MockNotifier.
type MockMessage struct {
	UserID int64
	Text   string
}

// NewMockNotifier creates a new mock notifier for testing.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{messages: make([]MockMessage, 0)}
}

// Notify records the message and returns any configured error.
func (m *MockNotifier) Notify(ctx context.Context, userID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.notifyError != nil {
		return m.notifyError
	}

	m.messages = append(m.messages, MockMessage{UserID: userID, Text: text})
	return nil
}

// GetMessages returns all recorded messages (for testing).
func (m *MockNotifier) GetMessages() []MockMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := make([]MockMessage, len(m.messages))
	copy(msgs, m.messages)
	return msgs
}

// SetNotifyError configures the mock to return an error on Notify.
func (m *MockNotifier) SetNotifyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyError = err
}
