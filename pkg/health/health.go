// Package health implements liveness and readiness probes. Registered
// checks run periodically in the background; probe handlers report the
// cached results so a slow dependency cannot stall the probe itself.
// Consecutive-failure and consecutive-success thresholds keep a single
// hiccup from flipping the reported state.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Kind separates liveness checks (is the process functional) from
// readiness checks (can the service take traffic).
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// probe holds one check and its cached state. The counters are touched
// only by the single loop goroutine; ok and lastErr are shared with the
// HTTP handlers and use atomics.
type probe struct {
	name    string
	kind    Kind
	timeout time.Duration
	check   CheckFunc

	ok      atomic.Bool
	lastErr atomic.Pointer[error]

	fails     int
	successes int
}

func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.successes = 0
		p.fails++
		if p.fails >= defaultFailureThreshold {
			p.ok.Store(false)
		}
		return
	}
	p.fails = 0
	p.successes++
	if p.successes >= defaultSuccessThreshold {
		p.ok.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.ok.Load() {
		return "", false
	}
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error(), true
	}
	return "check is unhealthy", true
}

// Service tracks probes and the manual readiness flag. The service starts
// not ready; call SetReady(true) once initialization finishes and
// SetReady(false) when shutdown begins.
type Service struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

func New() *Service {
	return &Service{}
}

// AddCheck registers a check of the given kind. Checks are assumed
// healthy until the first run proves otherwise.
func (s *Service) AddCheck(kind Kind, name string, timeout time.Duration, check CheckFunc) {
	p := &probe{name: name, kind: kind, timeout: timeout, check: check}
	p.ok.Store(true)

	s.mu.Lock()
	s.probes = append(s.probes, p)
	s.mu.Unlock()
}

// Start launches one goroutine per registered check, each running at the
// given interval until Stop or context cancellation.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	probes := make([]*probe, len(s.probes))
	copy(probes, s.probes)
	s.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels the background check goroutines. Safe to call twice.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness flag.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the service was marked ready and every
// readiness check is passing.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	for _, p := range s.snapshot(Readiness) {
		if _, failed := p.failure(); failed {
			return false
		}
	}
	return true
}

func (s *Service) snapshot(kind Kind) []*probe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*probe, 0, len(s.probes))
	for _, p := range s.probes {
		if p.kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// LiveEndpoint serves the liveness probe: 200 while every liveness check
// passes, 503 with per-check failure messages otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, s.failures(Liveness))
}

// ReadyEndpoint serves the readiness probe. It fails until SetReady(true)
// has been called and while any readiness check is failing.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := s.failures(Readiness)
	if !s.ready.Load() {
		failures = append(failures, checkFailure{name: "_readiness", message: "service is not ready"})
	}
	writeStatus(w, failures)
}

type checkFailure struct {
	name    string
	message string
}

func (s *Service) failures(kind Kind) []checkFailure {
	var out []checkFailure
	for _, p := range s.snapshot(kind) {
		if msg, failed := p.failure(); failed {
			out = append(out, checkFailure{name: p.name, message: msg})
		}
	}
	return out
}

func writeStatus(w http.ResponseWriter, failures []checkFailure) {
	w.Header().Set("Content-Type", "application/json")

	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) {
			if len(failures) > 0 {
				e.Str("unhealthy")
			} else {
				e.Str("ok")
			}
		})
		if len(failures) > 0 {
			e.Field("checks", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, f := range failures {
						e.Field(f.name, func(e *jx.Encoder) {
							e.Str(f.message)
						})
					}
				})
			})
		}
	})
	_, _ = w.Write(e.Bytes())
}
