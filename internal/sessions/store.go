package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/patrickmn/go-cache"
)

// Releaser drops a staged image. Implemented by *filex.Staging.
type Releaser interface {
	Remove(path string) error
}

type item struct {
	session Session
	// released is set when the session ends through Delete or Put rather
	// than by expiring.
	released atomic.Bool
}

// Store maps sender ids to sessions.
//
// With a positive ttl a session that is not touched for ttl is dropped by the
// sweep running every sweepEvery. Expiry counts as an implicit cancel: the
// staged image is released the same way an explicit Delete releases it.
type Store struct {
	// mu orders a touching Get against the eviction hook, so a session
	// read by an in-flight step is never released underneath it.
	mu sync.Mutex

	c        *cache.Cache
	releaser Releaser
	logger   logging.Logger
	expired  atomic.Int64
}

func NewStore(ttl, sweepEvery time.Duration, releaser Releaser, logger logging.Logger) *Store {
	if ttl <= 0 {
		ttl = cache.NoExpiration
		sweepEvery = 0
	}

	s := &Store{
		c:        cache.New(ttl, sweepEvery),
		releaser: releaser,
		logger:   logger,
	}
	s.c.OnEvicted(s.evicted)
	return s
}

// Get returns the live session of sender and restarts its expiry clock, so
// a step working on the session cannot see it expire. Expired sessions are
// reported as absent even before the sweep collects them.
func (s *Store) Get(sender string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(sender)
	if !ok {
		return Session{}, false
	}
	s.c.SetDefault(sender, v)
	return v.(*item).session, true
}

// Put stores the session and restarts its expiry clock. A staged image of a
// replaced session is released unless the new session keeps it.
func (s *Store) Put(sender string, sess Session) {
	// collect expired sessions first so that their images are released
	// before the key is overwritten
	s.c.DeleteExpired()

	if v, ok := s.c.Get(sender); ok {
		old := v.(*item)
		old.released.Store(true)
		if old.session.ImagePath != "" && old.session.ImagePath != sess.ImagePath {
			s.release(old.session.ImagePath)
		}
	}

	s.c.SetDefault(sender, &item{session: sess})
}

// Delete ends the session of sender and releases its staged image. It
// reports whether a session existed.
func (s *Store) Delete(sender string) bool {
	v, ok := s.c.Get(sender)
	if !ok {
		return false
	}
	v.(*item).released.Store(true)
	s.c.Delete(sender)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return len(s.c.Items())
}

// Expired returns how many sessions were dropped by expiry so far.
func (s *Store) Expired() int64 {
	return s.expired.Load()
}

// Sweep drops expired sessions now instead of waiting for the next sweep.
func (s *Store) Sweep() {
	s.c.DeleteExpired()
}

func (s *Store) evicted(sender string, v any) {
	it := v.(*item)

	s.mu.Lock()
	live, ok := s.c.Get(sender)
	s.mu.Unlock()
	if ok && live.(*item) == it {
		// swept while a Get brought it back to life
		return
	}

	if it.released.Load() {
		s.release(it.session.ImagePath)
		return
	}

	s.expired.Add(1)
	s.logger.Info(context.Background(), "session expired",
		"sender", sender,
		"mode", string(it.session.Mode),
		"age", time.Since(it.session.Started).Round(time.Second).String(),
	)
	s.release(it.session.ImagePath)
}

func (s *Store) release(path string) {
	if path == "" || s.releaser == nil {
		return
	}
	if err := s.releaser.Remove(path); err != nil {
		s.logger.Warn(context.Background(), "release staged image", "path", path, "error", err)
	}
}
