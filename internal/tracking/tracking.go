package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/service"
)

// Sharer dispatches one position update. *service.Orchestrator satisfies it.
type Sharer interface {
	Dispatch(ctx context.Context, kind domain.DispatchKind, req service.Request) (*domain.AggregateResult, bool, error)
}

// StartRequest describes a new live tracking session.
type StartRequest struct {
	OwnerID  string
	Contacts []domain.Contact
	User     domain.UserInfo
	Channel  domain.Channel
	Interval time.Duration
	Location *domain.LocationSnapshot
}

// Session is a read-only view of a running tracking session.
type Session struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Channel      domain.Channel `json:"channel"`
	Interval     time.Duration  `json:"interval"`
	StartedAt    time.Time      `json:"started_at"`
	LastSharedAt time.Time      `json:"last_shared_at,omitempty"`
	Shares       int            `json:"shares"`
}

type session struct {
	mu      sync.Mutex
	info    Session
	req     service.Request
	latest  *domain.LocationSnapshot
	shared  *domain.LocationSnapshot
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Manager runs live tracking sessions. Each session has its own ticker
// goroutine that re-shares the latest position with the session's contacts
// whenever the position changed since the last share.
//
// Sessions outlive the request that started them; they end on Stop or when
// the context passed to NewManager is cancelled.
type Manager struct {
	base        context.Context
	sharer      Sharer
	minInterval time.Duration
	onCount     func(n int)
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewManager creates a Manager. onCount, when non-nil, is called with the
// number of running sessions every time it changes.
func NewManager(
	base context.Context,
	sharer Sharer,
	minInterval time.Duration,
	onCount func(n int),
	logger *zap.Logger,
) *Manager {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &Manager{
		base:        base,
		sharer:      sharer,
		minInterval: minInterval,
		onCount:     onCount,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

// Start begins a session. When req carries a location it is shared
// immediately; later positions arrive through UpdatePosition.
func (m *Manager) Start(req StartRequest) (Session, error) {
	if !req.Channel.IsValid() {
		return Session{}, domain.ErrInvalidChannel
	}
	if len(req.Contacts) == 0 {
		return Session{}, domain.ErrInvalidArgument
	}
	if req.Interval < m.minInterval || req.Interval <= 0 {
		return Session{}, domain.ErrInvalidInterval
	}
	if req.Location != nil {
		if err := req.Location.Validate(); err != nil {
			return Session{}, err
		}
	}
	if m.base.Err() != nil {
		return Session{}, domain.ErrTrackingStopped
	}

	ctx, cancel := context.WithCancel(m.base)
	s := &session{
		info: Session{
			ID:        uuid.New().String(),
			OwnerID:   req.OwnerID,
			Channel:   req.Channel,
			Interval:  req.Interval,
			StartedAt: time.Now().UTC(),
		},
		req: service.Request{
			OwnerID:  req.OwnerID,
			Contacts: req.Contacts,
			User:     req.User,
			Channel:  req.Channel,
		},
		latest:  req.Location,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.info.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.onCount(n)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(s.stopped)
		m.run(ctx, s)
		m.forget(s)
	}()

	m.logger.Info("tracking session started",
		zap.String("session_id", s.info.ID),
		zap.String("owner_id", req.OwnerID),
		zap.Duration("interval", req.Interval),
	)
	return s.view(), nil
}

// UpdatePosition records the latest position for a session. It is shared on
// the session's next tick.
func (m *Manager) UpdatePosition(id string, loc domain.LocationSnapshot) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.latest = &loc
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot of a running session.
func (m *Manager) Get(id string) (Session, error) {
	s, err := m.get(id)
	if err != nil {
		return Session{}, err
	}
	return s.view(), nil
}

// Stop ends a session and waits for its goroutine to return. The session is
// removed, so its id cannot be reused.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	m.onCount(n)

	s.cancel()
	<-s.stopped
	m.logger.Info("tracking session stopped", zap.String("session_id", id))
	return nil
}

// Count returns the number of running sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every session goroutine has returned. Call it after
// cancelling the base context.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// forget drops s if it is still registered, which happens when the base
// context ends the session rather than Stop.
func (m *Manager) forget(s *session) {
	m.mu.Lock()
	cur, ok := m.sessions[s.info.ID]
	if ok && cur == s {
		delete(m.sessions, s.info.ID)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if ok && cur == s {
		m.onCount(n)
		m.logger.Info("tracking session ended by shutdown", zap.String("session_id", s.info.ID))
	}
}

func (m *Manager) run(ctx context.Context, s *session) {
	logger := m.logger.With(zap.String("session_id", s.info.ID))

	m.share(ctx, s, logger)

	ticker := time.NewTicker(s.info.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.share(ctx, s, logger)
		}
	}
}

// share dispatches the latest position unless it equals the last one shared.
func (m *Manager) share(ctx context.Context, s *session, logger *zap.Logger) {
	s.mu.Lock()
	loc := s.latest
	if loc == nil || samePosition(loc, s.shared) {
		s.mu.Unlock()
		return
	}
	req := s.req
	snap := *loc
	s.mu.Unlock()

	req.Location = &snap
	res, _, err := m.sharer.Dispatch(ctx, domain.KindTrackingUpdate, req)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("tracking update failed", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.shared = &snap
	s.info.Shares++
	s.info.LastSharedAt = time.Now().UTC()
	s.mu.Unlock()

	logger.Debug("tracking update shared",
		zap.Bool("overall_success", res.OverallSuccess),
		zap.String("summary", res.HumanSummary),
	)
}

func (s *session) view() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func samePosition(a, b *domain.LocationSnapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude
}
