package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"saas-core/backend/internal/events"
	identitydomain "saas-core/backend/internal/identity/domain"
	impersonationdomain "saas-core/backend/internal/impersonation/domain"
	loginattemptdomain "saas-core/backend/internal/loginattempt/domain"
	sessiondomain "saas-core/backend/internal/session/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if userdomain.NormalizeEmail(u.Email) == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) setStatus(id string, st userdomain.UserStatus) {
	r.mu.Lock()
	r.byID[id].Status = st
	r.mu.Unlock()
}

type memIdentityRepo struct {
	mu sync.Mutex
	m  map[string]*identitydomain.Identity
}

func (r *memIdentityRepo) GetByUserAndProvider(_ context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if i.UserID == userID && i.Provider == provider {
			return i, nil
		}
	}
	return nil, nil
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
	// lastSeenErr makes UpdateLastSeen fail
	lastSeenErr error
}

func (r *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.m {
		if existing.RefreshTokenHash == s.RefreshTokenHash {
			return errors.New("duplicate refresh token hash")
		}
	}
	cp := *s
	r.m[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) get(id string) *sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	return r.get(id), nil
}

func (r *memSessionRepo) GetByRefreshHash(_ context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeIfActive(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	t := at
	s.RevokedAt = &t
	return true, nil
}

func (r *memSessionRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.revokeWhere(func(s *sessiondomain.Session) bool { return s.UserID == userID }, at), nil
}

func (r *memSessionRepo) RevokeAllExcept(_ context.Context, userID, keepID string, at time.Time) (int64, error) {
	return r.revokeWhere(func(s *sessiondomain.Session) bool { return s.UserID == userID && s.ID != keepID }, at), nil
}

func (r *memSessionRepo) revokeWhere(match func(*sessiondomain.Session) bool, at time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.m {
		if match(s) && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
			n++
		}
	}
	return n
}

func (r *memSessionRepo) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSeenErr != nil {
		return r.lastSeenErr
	}
	if s, ok := r.m[id]; ok {
		s.LastSeenAt = at
	}
	return nil
}

func (r *memSessionRepo) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.m {
		if s.UserID == userID && s.IsActive(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepo) activeCount(userID string, now time.Time) int {
	list, _ := r.ListActiveByUser(context.Background(), userID, now)
	return len(list)
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*loginattemptdomain.Attempt
	// afterLockoutCheck runs once the lockout lookup is done, outside the lock.
	afterLockoutCheck func()
}

func (r *memAttemptRepo) FindLockoutByEmail(_ context.Context, email string, now time.Time) (*loginattemptdomain.Lockout, error) {
	lock, err := r.findLockout(email, now)
	if r.afterLockoutCheck != nil {
		r.afterLockoutCheck()
	}
	return lock, err
}

func (r *memAttemptRepo) findLockout(email string, now time.Time) (*loginattemptdomain.Lockout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *loginattemptdomain.Lockout
	for _, a := range r.attempts {
		if a.Email != email || a.LockedUntil == nil || !now.Before(*a.LockedUntil) {
			continue
		}
		if latest == nil || a.LockedUntil.After(latest.LockedUntil) {
			latest = &loginattemptdomain.Lockout{Email: email, LockedUntil: *a.LockedUntil}
		}
	}
	return latest, nil
}

func (r *memAttemptRepo) countFailures(email string, since time.Time) int {
	n := 0
	for _, a := range r.attempts {
		if a.Email == email && !a.Success && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

func (r *memAttemptRepo) Record(_ context.Context, a *loginattemptdomain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts = append(r.attempts, &cp)
	return nil
}

func (r *memAttemptRepo) RecordFailure(_ context.Context, a *loginattemptdomain.Attempt, since time.Time, threshold int, lockFor time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.Success = false
	cp := *a
	r.attempts = append(r.attempts, &cp)
	n := r.countFailures(a.Email, since)
	if n >= threshold {
		until := a.CreatedAt.Add(lockFor)
		cp.LockedUntil = &until
		a.LockedUntil = &until
	}
	return n, nil
}

func (r *memAttemptRepo) failures(email string, since time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countFailures(email, since)
}

func (r *memAttemptRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

type memImpersonationRepo struct {
	mu sync.Mutex
	m  map[string]*impersonationdomain.Session
}

func (r *memImpersonationRepo) Create(_ context.Context, s *impersonationdomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.m[s.ID] = &cp
	return nil
}

func (r *memImpersonationRepo) GetByID(_ context.Context, id string) (*impersonationdomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memImpersonationRepo) End(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.EndedAt != nil {
		return false, nil
	}
	t := at
	s.EndedAt = &t
	return true, nil
}

func (r *memImpersonationRepo) GetActiveByAdmin(_ context.Context, adminID string, now time.Time) (*impersonationdomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.AdminID == adminID && s.IsActive(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

// memPublisher records events. Publish fails when err is set.
type memPublisher struct {
	mu    sync.Mutex
	sync  []events.Event
	async []events.Event
	err   error
}

func (p *memPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sync = append(p.sync, e)
	return nil
}

func (p *memPublisher) PublishAsync(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.async = append(p.async, e)
}

func (p *memPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.sync {
		out = append(out, e.Name)
	}
	for _, e := range p.async {
		out = append(out, e.Name)
	}
	return out
}

func (p *memPublisher) has(name string) bool {
	for _, n := range p.names() {
		if n == name {
			return true
		}
	}
	return false
}
