package refresh

import (
	"sort"
	"sync"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/config"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseExtracting Phase = "extracting"
)

// FamilyState is a point-in-time copy of one family's refresh status.
type FamilyState struct {
	Family      config.IPFamily
	Phase       Phase
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
	// Countries is the number of countries in the store after the last
	// successful refresh.
	Countries int
	// Checksum is the MD5 of the last archive that was extracted.
	Checksum string
}

// State is the process-wide refresh status. The scheduler is the only writer.
type State struct {
	mu       sync.RWMutex
	families map[config.IPFamily]*FamilyState
}

func NewState(families ...config.IPFamily) *State {
	s := &State{families: make(map[config.IPFamily]*FamilyState, len(families))}
	for _, f := range families {
		s.families[f] = &FamilyState{Family: f, Phase: PhaseIdle}
	}
	return s
}

// Get returns a copy of the family's state.
func (s *State) Get(family config.IPFamily) (FamilyState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.families[family]
	if !ok {
		return FamilyState{}, false
	}
	return *fs, true
}

// Snapshot returns copies of all families ordered IPv4 first.
func (s *State) Snapshot() []FamilyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FamilyState, 0, len(s.families))
	for _, fs := range s.families {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out
}

func (s *State) update(family config.IPFamily, fn func(fs *FamilyState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.families[family]
	if !ok {
		fs = &FamilyState{Family: family}
		s.families[family] = fs
	}
	fn(fs)
}

func (s *State) begin(family config.IPFamily, at time.Time) {
	s.update(family, func(fs *FamilyState) {
		fs.Phase = PhaseFetching
		fs.LastAttempt = at
	})
}

func (s *State) setPhase(family config.IPFamily, phase Phase) {
	s.update(family, func(fs *FamilyState) { fs.Phase = phase })
}

func (s *State) succeed(family config.IPFamily, at time.Time, countries int, checksum string) {
	s.update(family, func(fs *FamilyState) {
		fs.Phase = PhaseIdle
		fs.LastSuccess = at
		fs.LastError = nil
		fs.Countries = countries
		if checksum != "" {
			fs.Checksum = checksum
		}
	})
}

func (s *State) fail(family config.IPFamily, err error) {
	s.update(family, func(fs *FamilyState) {
		fs.Phase = PhaseIdle
		fs.LastError = err
	})
}
