// Package account holds the signed-in user state of a player session.
package account

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/domain/user"
)

// ErrNotSignedIn is returned when an operation needs a session.
var ErrNotSignedIn = errors.New("not signed in")

// EventType is an authentication state change.
type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// Event is delivered to subscribers on sign in and sign out.
type Event struct {
	Type EventType
	User *user.User // nil for SignedOut
}

// Identity is the external identity provider.
type Identity interface {
	SignUp(ctx context.Context, email, password, fullName string) (*user.Session, error)
	SignIn(ctx context.Context, email, password string) (*user.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*user.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*user.User, error)
}

// State is a snapshot of the account.
type State struct {
	User      *user.User `json:"user"`
	IsLoading bool       `json:"is_loading"`
	Error     string     `json:"error,omitempty"`
}

// Service tracks the current user through login, registration and logout.
type Service struct {
	identity Identity
	file     *SessionFile
	now      func() time.Time

	mu      sync.Mutex
	session *user.Session
	state   State

	subMu sync.Mutex
	subs  map[string]func(Event)
}

// NewService creates a new account service. It starts loading until
// Restore completes.
func NewService(identity Identity, file *SessionFile) *Service {
	return &Service{
		identity: identity,
		file:     file,
		now:      time.Now,
		state:    State{IsLoading: true},
		subs:     make(map[string]func(Event)),
	}
}

// Subscribe registers fn for auth events and returns its subscription id.
func (s *Service) Subscribe(fn func(Event)) (string, func()) {
	id := uuid.NewString()
	s.subMu.Lock()
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Service) emit(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// State returns the current account state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// CurrentUser returns the signed-in user, or nil.
func (s *Service) CurrentUser() *user.User {
	return s.State().User
}

// ClearError clears the last error.
func (s *Service) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
}

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsLoading = true
	s.state.Error = ""
}

func (s *Service) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsLoading = false
	s.state.Error = errors.UnwrapAll(err).Error()
	return err
}

// signIn stores session and reports whether it carries a token.
func (s *Service) signIn(session *user.Session) bool {
	u := session.User
	s.mu.Lock()
	s.session = session
	s.state = State{User: &u}
	s.mu.Unlock()

	if session.AccessToken == "" {
		return false
	}
	if err := s.file.Save(session); err != nil {
		zlog.Warn().Msgf("account: failed to persist session: %v", err)
	}
	return true
}

func (s *Service) signOut() {
	s.mu.Lock()
	s.session = nil
	s.state = State{}
	s.mu.Unlock()

	if err := s.file.Remove(); err != nil {
		zlog.Warn().Msgf("account: %v", err)
	}
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, email, password string) error {
	s.begin()
	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return s.fail(err)
	}
	s.signIn(session)
	zlog.Info().Msgf("account: signed in user=%s", session.User.ID)
	s.emit(Event{Type: SignedIn, User: &session.User})
	return nil
}

// Register creates an account. The user is signed in immediately unless
// the provider requires email confirmation.
func (s *Service) Register(ctx context.Context, email, password, fullName string) error {
	s.begin()
	session, err := s.identity.SignUp(ctx, email, password, fullName)
	if err != nil {
		return s.fail(err)
	}
	if s.signIn(session) {
		s.emit(Event{Type: SignedIn, User: &session.User})
	} else {
		zlog.Info().Msgf("account: registered user=%s, confirmation pending", session.User.ID)
	}
	return nil
}

// Logout signs out and forgets the saved session.
func (s *Service) Logout(ctx context.Context) error {
	s.begin()
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session != nil && session.AccessToken != "" {
		if err := s.identity.SignOut(ctx, session.AccessToken); err != nil {
			return s.fail(err)
		}
	}
	s.signOut()
	zlog.Info().Msg("account: signed out")
	s.emit(Event{Type: SignedOut})
	return nil
}

// Restore loads the saved session and revalidates it.
func (s *Service) Restore(ctx context.Context) error {
	saved, err := s.file.Load()
	if err != nil {
		zlog.Warn().Msgf("account: %v", err)
	}
	if saved != nil {
		s.mu.Lock()
		s.session = saved
		s.mu.Unlock()
	}
	return s.RefreshUser(ctx)
}

// RefreshUser revalidates the current session with the provider. Any
// failure leaves the account signed out without an error.
func (s *Service) RefreshUser(ctx context.Context) error {
	s.mu.Lock()
	s.state.IsLoading = true
	session := s.session
	wasSignedIn := s.state.User != nil
	s.mu.Unlock()

	if session == nil || (session.AccessToken == "" && session.RefreshToken == "") {
		s.signOut()
		return nil
	}

	session, err := s.ensureFresh(ctx, session)
	if err == nil {
		var u *user.User
		u, err = s.identity.GetUser(ctx, session.AccessToken)
		if err == nil {
			session.User = *u
		}
	}
	if err != nil {
		zlog.Info().Msgf("account: session no longer valid: %v", err)
		s.signOut()
		if wasSignedIn {
			s.emit(Event{Type: SignedOut})
		}
		return nil
	}

	s.signIn(session)
	if !wasSignedIn {
		s.emit(Event{Type: SignedIn, User: &session.User})
	}
	return nil
}

func (s *Service) ensureFresh(ctx context.Context, session *user.Session) (*user.Session, error) {
	if session.AccessToken != "" && !session.Expired(s.now()) {
		return session, nil
	}
	if session.RefreshToken == "" {
		return nil, errors.New("session expired")
	}
	fresh, err := s.identity.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return nil, err
	}
	if fresh.User.ID == "" {
		fresh.User = session.User
	}
	return fresh, nil
}

// AccessToken returns a valid access token, refreshing it when expired.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil || session.AccessToken == "" {
		return "", ErrNotSignedIn
	}
	if !session.Expired(s.now()) {
		return session.AccessToken, nil
	}

	fresh, err := s.ensureFresh(ctx, session)
	if err != nil {
		return "", errors.Wrap(err, "failed to refresh session")
	}
	s.signIn(fresh)
	return fresh.AccessToken, nil
}
