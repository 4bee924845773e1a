// Package engine implements the CBT exam lifecycle: exam definition,
// schedule and attempt state machines, answer grading, scoring and the
// projection of attempt scores into the academic results ledger.
//
// State transitions never fail on unmet preconditions. They return the
// entity as it stands after the call and the caller inspects its status.
package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// Roster lists the students of a classroom.
type Roster interface {
	ListStudents(ctx context.Context, classroomID int64) ([]model.StudentRef, error)
}

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Config holds the engine settings resolved at startup.
type Config struct {
	Location             *time.Location // schedule dates and clock times are read in this zone
	PersistQuestionOrder bool           // fix question and option order per attempt
	RaceWindow           time.Duration  // saves of one answer closer than this are logged
}

// Engine runs CBT operations against a store.
type Engine struct {
	store  *store.Store
	roster Roster
	cfg    Config
	now    func() time.Time

	mu  sync.Mutex
	rng Shuffler
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithShuffler replaces the random source used for question and option order.
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) { e.rng = s }
}

// WithRoster replaces the classroom roster. The store is used by default.
func WithRoster(r Roster) Option {
	return func(e *Engine) { e.roster = r }
}

// New creates an engine.
func New(st *store.Store, cfg Config, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Engine{
		store:  st,
		roster: st,
		cfg:    cfg,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(n, swap)
}
