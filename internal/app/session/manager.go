// Package session provides the session manager, which owns the player,
// the queue and the services that drive them for one client session.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/account"
	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/app/filter"
	"github.com/osa030/melodify/internal/app/library"
	"github.com/osa030/melodify/internal/app/notification"
	"github.com/osa030/melodify/internal/app/playback"
	"github.com/osa030/melodify/internal/infra/cache"
	"github.com/osa030/melodify/internal/infra/config"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// PurchaseFeed delivers purchase completions from the payment endpoints.
type PurchaseFeed interface {
	SubscribePurchases(ctx context.Context, fn func(cache.PurchaseEvent)) error
}

// Deps holds the external collaborators of a session.
type Deps struct {
	Catalog   catalog.Store
	Identity  account.Identity
	Binder    playback.Binder
	Purchases PurchaseFeed // optional
}

// Status is a full copy of the session state.
type Status struct {
	Player      playback.Snapshot      `json:"player"`
	Queue       playback.QueueSnapshot `json:"queue"`
	Account     account.State          `json:"account"`
	Renderable  bool                   `json:"renderable"`
	MediaID     string                 `json:"media_id,omitempty"`
	WidgetReady bool                   `json:"widget_ready"`
}

// pending holds the latest undelivered change of each kind.
type pending struct {
	player    *playback.Snapshot
	queue     *playback.QueueSnapshot
	account   *account.State
	purchases []notification.Purchase
}

// Manager manages a player session.
type Manager struct {
	config *config.Config

	// Components
	store        *playback.Store
	queue        *playback.Queue
	adapter      *playback.Adapter
	account      *account.Service
	library      *library.Service
	filterChain  *filter.Chain
	notification *notification.Manager
	purchases    PurchaseFeed

	// Coalesced notifications
	pendingMu sync.Mutex
	pending   pending
	kick      chan struct{}

	unsubscribe []func()

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Catalog == nil || deps.Identity == nil || deps.Binder == nil {
		return nil, errors.New("session: catalog, identity and binder are required")
	}

	chain, err := filter.Build(cfg.IsFilterEnabled, cfg.FilterSettings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build filter chain")
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := playback.NewStore(cfg.Player.DefaultVolume)
	queue := playback.NewQueue(store)
	accountSvc := account.NewService(deps.Identity, account.NewSessionFile(cfg.Player.SessionFile))

	m := &Manager{
		config:       cfg,
		store:        store,
		queue:        queue,
		account:      accountSvc,
		library:      library.NewService(deps.Catalog, accountSvc, store, queue, chain),
		filterChain:  chain,
		notification: notification.NewManager(),
		purchases:    deps.Purchases,
		kick:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.adapter = playback.NewAdapter(store, queue, deps.Binder, playback.AdapterConfig{
		PollInterval: cfg.PollInterval(),
		Options:      playback.DefaultWidgetOptions(),
	})

	m.unsubscribe = append(m.unsubscribe,
		store.Subscribe(func(c playback.Change) {
			snap := c.Snapshot
			m.post(func(p *pending) { p.player = &snap })
		}),
		queue.Subscribe(func(q playback.QueueSnapshot) {
			m.post(func(p *pending) { p.queue = &q })
		}),
	)
	_, unsubscribeAccount := accountSvc.Subscribe(m.onAccountEvent)
	m.unsubscribe = append(m.unsubscribe, unsubscribeAccount)

	go m.notificationLoop()

	return m, nil
}

// Start restores the saved sign-in and subscribes to purchase events.
func (m *Manager) Start(ctx context.Context) error {
	select {
	case <-m.done:
		return ErrSessionClosed
	default:
	}

	if err := m.account.Restore(ctx); err != nil {
		zlog.Warn().Msgf("session: failed to restore account: %v", err)
	}
	if u := m.account.CurrentUser(); u != nil {
		zlog.Info().Msgf("session: signed in as %s", u.DisplayName())
	}

	if m.purchases != nil {
		if err := m.purchases.SubscribePurchases(m.ctx, m.onPurchase); err != nil {
			zlog.Warn().Msgf("session: purchase events unavailable: %v", err)
		}
	}

	zlog.Info().Msgf("session started: filters=%d widget=%s", len(m.filterChain.Filters()), m.config.Player.Widget.Type)
	return nil
}

func (m *Manager) onAccountEvent(ev account.Event) {
	zlog.Info().Msgf("session: account event type=%s", ev.Type)
	st := m.account.State()
	m.post(func(p *pending) { p.account = &st })
}

func (m *Manager) onPurchase(ev cache.PurchaseEvent) {
	u := m.account.CurrentUser()
	if u == nil || ev.UserID != u.ID {
		return
	}
	zlog.Info().Msgf("session: purchase completed purchase=%s song=%s", ev.PurchaseID, ev.SongID)
	m.post(func(p *pending) {
		p.purchases = append(p.purchases, notification.Purchase{PurchaseID: ev.PurchaseID, SongID: ev.SongID})
	})
}

// post records a change and wakes the notification loop. It never blocks,
// so it is safe to call from store and queue subscribers.
func (m *Manager) post(update func(p *pending)) {
	m.pendingMu.Lock()
	update(&m.pending)
	m.pendingMu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Manager) notificationLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("notification loop panicked: %v", r)
			go m.notificationLoop()
		}
	}()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.kick:
			m.flush()
		}
	}
}

func (m *Manager) flush() {
	m.pendingMu.Lock()
	p := m.pending
	m.pending = pending{}
	m.pendingMu.Unlock()

	if p.account != nil {
		m.notification.Broadcast(&notification.Notification{Type: notification.TypeAccount, Account: p.account})
	}
	if p.queue != nil {
		m.notification.Broadcast(&notification.Notification{Type: notification.TypeQueue, Queue: p.queue})
	}
	if p.player != nil {
		m.notification.Broadcast(&notification.Notification{Type: notification.TypePlayer, Player: p.player})
	}
	for _, purchase := range p.purchases {
		m.notification.Broadcast(&notification.Notification{Type: notification.TypePurchase, Purchase: &purchase})
	}
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() *Status {
	return &Status{
		Player:      m.store.Snapshot(),
		Queue:       m.queue.Snapshot(),
		Account:     m.account.State(),
		Renderable:  m.adapter.Renderable(),
		MediaID:     m.adapter.MediaID(),
		WidgetReady: m.adapter.Ready(),
	}
}

// InitialState returns the notification a new subscriber receives first.
func (m *Manager) InitialState() *notification.Notification {
	st := m.GetStatus()
	return &notification.Notification{
		Type:       notification.TypeInitialState,
		SequenceNo: m.notification.NextSequenceNo(),
		Player:     &st.Player,
		Queue:      &st.Queue,
		Account:    &st.Account,
	}
}

// Player returns the player state store.
func (m *Manager) Player() *playback.Store { return m.store }

// Queue returns the play queue.
func (m *Manager) Queue() *playback.Queue { return m.queue }

// Adapter returns the widget adapter.
func (m *Manager) Adapter() *playback.Adapter { return m.adapter }

// Account returns the account service.
func (m *Manager) Account() *account.Service { return m.account }

// Library returns the library service.
func (m *Manager) Library() *library.Service { return m.library }

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Done is closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback, releases the widget and drops all subscribers.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		for _, unsubscribe := range m.unsubscribe {
			unsubscribe()
		}
		m.adapter.Close()
		m.store.Pause()
		m.cancel()
		m.notification.Close()
		close(m.done)
		zlog.Info().Msg("session closed")
	})
}
