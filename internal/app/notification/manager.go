// Package notification fans player, queue and account changes out to
// connected control clients.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/account"
	"github.com/osa030/melodify/internal/app/playback"
)

// Type identifies the payload of a notification.
type Type string

const (
	TypeInitialState Type = "INITIAL_STATE"
	TypePlayer       Type = "PLAYER"
	TypeQueue        Type = "QUEUE"
	TypeAccount      Type = "ACCOUNT"
	TypePurchase     Type = "PURCHASE"
)

// sendTimeout bounds a single subscriber send during Broadcast.
const sendTimeout = 500 * time.Millisecond

// Purchase announces a completed purchase for the signed-in user.
type Purchase struct {
	PurchaseID string `json:"purchase_id"`
	SongID     string `json:"song_id"`
}

// Notification is one message to a subscriber. Only the payloads named by
// Type are set, except for TypeInitialState which carries all of them.
type Notification struct {
	Type       Type                    `json:"type"`
	SequenceNo uint64                  `json:"sequence_no"`
	Player     *playback.Snapshot      `json:"player,omitempty"`
	Queue      *playback.QueueSnapshot `json:"queue,omitempty"`
	Account    *account.State          `json:"account,omitempty"`
	Purchase   *Purchase               `json:"purchase,omitempty"`
}

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*Notification) error
}

type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNoMu sync.Mutex
	sequenceNo   uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	zlog.Debug().Msgf("notification: subscribed id=%s", id)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NextSequenceNo returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps n with the next sequence number and sends it to every
// subscriber in parallel. A subscriber that does not accept the message
// within sendTimeout is skipped for this message.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- sub.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed id=%s: %v", sub.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out id=%s type=%s", sub.id, n.Type)
			}
		}()
	}
	wg.Wait()
}

// Send sends n to one subscriber. Unknown IDs are ignored.
func (m *Manager) Send(subscriptionID string, n *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
