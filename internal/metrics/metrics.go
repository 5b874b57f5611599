// Package metrics keeps per-source scraping statistics and derives the two
// tuning parameters the orchestrator feeds back into scheduling: the
// inter-request delay and the page budget. Every mutation is flushed to a
// durable keyed document so tuning survives process restarts.
package metrics

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	latencyWindow = 50
	yieldWindow   = 20

	// Tuning is derived only once this many latency samples exist.
	tuningMinSamples = 5
	maxDelay         = 5 * time.Second
	latencyFraction  = 0.2

	// Priority bounds. Lower means scrape sooner.
	minPriority     = 1.0
	maxPriority     = 10.0
	defaultPriority = 5.0
	yieldBonusFloor = 50.0
)

// SourceStats is the serialized, point-in-time view of one source's metrics.
// It is both the persistence format (one entry per source in a keyed
// document) and the snapshot handed to reporting.
type SourceStats struct {
	Runs          int            `json:"runs"`
	Successes     int            `json:"successes"`
	Failures      int            `json:"failures"`
	ResponseTimes []float64      `json:"response_times"` // seconds, newest last, cap 50
	ItemCounts    []int          `json:"items_counts"`   // newest last, cap 20
	Errors        map[string]int `json:"errors,omitempty"`
	OptimalDelay  float64        `json:"optimal_delay_secs"`
	OptimalPages  int            `json:"optimal_pages"`
}

// SuccessRate returns successes/runs, or 0 when the source never ran.
func (s SourceStats) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Runs)
}

// Persister stores the metrics document durably.
type Persister interface {
	Save(doc map[string]SourceStats) error
	Load() (map[string]SourceStats, error)
}

type sourceState struct {
	runs      int
	successes int
	failures  int
	latencies *Ring[float64] // seconds
	yields    *Ring[int]
	errors    map[string]int
	delay     time.Duration
	pages     int
}

// Store tracks metrics for all sources. Safe for concurrent use: ingestion
// records outcomes while the reporter reads snapshots.
type Store struct {
	mu        sync.Mutex
	baseDelay time.Duration
	sources   map[string]*sourceState
	persist   Persister
}

// NewStore creates a metrics store. Persister may be nil (tests, dry runs);
// metrics then live only in memory.
func NewStore(baseDelay time.Duration, persist Persister) *Store {
	return &Store{
		baseDelay: baseDelay,
		sources:   make(map[string]*sourceState),
		persist:   persist,
	}
}

// Load replaces in-memory state with the persisted document. Missing
// documents are not an error; the store simply starts empty.
func (s *Store) Load() error {
	if s.persist == nil {
		return nil
	}
	doc, err := s.persist.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = make(map[string]*sourceState, len(doc))
	for name, st := range doc {
		state := s.newState()
		state.runs = st.Runs
		state.successes = st.Successes
		state.failures = st.Failures
		for _, v := range st.ResponseTimes {
			state.latencies.Push(v)
		}
		for _, v := range st.ItemCounts {
			state.yields.Push(v)
		}
		for k, v := range st.Errors {
			state.errors[k] = v
		}
		s.retune(state)
		s.sources[name] = state
	}
	return nil
}

// RecordSuccess records a successful fetch with its latency and yield.
func (s *Store) RecordSuccess(source string, latency time.Duration, items int) {
	s.mu.Lock()
	state := s.state(source)
	state.runs++
	state.successes++
	state.latencies.Push(latency.Seconds())
	state.yields.Push(items)
	s.retune(state)
	doc := s.snapshotLocked()
	s.mu.Unlock()

	s.flush(doc)
}

// RecordFailure records a failed fetch under the given error kind.
func (s *Store) RecordFailure(source, kind string) {
	s.mu.Lock()
	state := s.state(source)
	state.runs++
	state.failures++
	state.errors[kind]++
	s.retune(state)
	doc := s.snapshotLocked()
	s.mu.Unlock()

	s.flush(doc)
}

// Tuning returns the derived (delay, page budget) for a source. Sources
// without history get the base delay and the minimum page budget.
func (s *Store) Tuning(source string) (time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sources[source]
	if !ok {
		return s.baseDelay, 2
	}
	return state.delay, state.pages
}

// Priority scores a source for scheduling; lower scores scrape sooner.
func (s *Store) Priority(source string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sources[source]
	if !ok || state.runs == 0 {
		return defaultPriority
	}

	rate := float64(state.successes) / float64(state.runs)
	score := maxPriority - rate*10

	if state.yields.Len() > 0 && state.yields.Mean() > yieldBonusFloor {
		score -= 2
	}
	if state.failures > state.successes {
		score += 3
	}

	if score < minPriority {
		score = minPriority
	}
	if score > maxPriority {
		score = maxPriority
	}
	return score
}

// Snapshot returns a deep copy of all source stats, sorted map by key for
// deterministic iteration by callers that range over Names.
func (s *Store) Snapshot() map[string]SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Names returns all tracked source names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) state(source string) *sourceState {
	state, ok := s.sources[source]
	if !ok {
		state = s.newState()
		s.sources[source] = state
	}
	return state
}

func (s *Store) newState() *sourceState {
	return &sourceState{
		latencies: NewRing[float64](latencyWindow),
		yields:    NewRing[int](yieldWindow),
		errors:    make(map[string]int),
		delay:     s.baseDelay,
		pages:     2,
	}
}

// retune recomputes the derived delay and page budget for a source.
func (s *Store) retune(state *sourceState) {
	state.delay = s.baseDelay
	if state.latencies.Len() >= tuningMinSamples {
		derived := time.Duration(state.latencies.Mean() * latencyFraction * float64(time.Second))
		if derived > maxDelay {
			derived = maxDelay
		}
		if derived > state.delay {
			state.delay = derived
		}
	}

	rate := 0.0
	if state.runs > 0 {
		rate = float64(state.successes) / float64(state.runs)
	}
	switch {
	case rate > 0.9 && state.runs > 10:
		state.pages = 5
	case rate > 0.7 && state.runs > 5:
		state.pages = 3
	default:
		state.pages = 2
	}
}

func (s *Store) snapshotLocked() map[string]SourceStats {
	doc := make(map[string]SourceStats, len(s.sources))
	for name, state := range s.sources {
		st := SourceStats{
			Runs:          state.runs,
			Successes:     state.successes,
			Failures:      state.failures,
			ResponseTimes: state.latencies.Values(),
			ItemCounts:    state.yields.Values(),
			OptimalDelay:  state.delay.Seconds(),
			OptimalPages:  state.pages,
		}
		if len(state.errors) > 0 {
			st.Errors = make(map[string]int, len(state.errors))
			for k, v := range state.errors {
				st.Errors[k] = v
			}
		}
		doc[name] = st
	}
	return doc
}

// flush persists the document. Persistence failures degrade tuning across
// restarts but never fail the run, so they are only logged.
func (s *Store) flush(doc map[string]SourceStats) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(doc); err != nil {
		zap.L().Warn("metrics: persist failed", zap.Error(err))
	}
}
