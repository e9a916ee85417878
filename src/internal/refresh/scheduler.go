// Package refresh keeps the per-family block stores up to date.
//
// Each family runs its own loop: an initial refresh at start, then one every
// interval. A refresh moves the family through fetching and extracting and
// back to idle; failures keep the previous data and wait for the next tick.
// The interval restarts whenever a refresh begins, whatever triggered it.
package refresh

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/extractor"
	"github.com/wifx/geoip-rsc/src/internal/fetcher"
	"github.com/wifx/geoip-rsc/src/internal/hashing"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/store"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

// ErrInProgress is returned when a refresh for the family is already running.
var ErrInProgress = stderrors.New("refresh already in progress")

// ErrUnknownFamily is returned for a family without a configured source.
var ErrUnknownFamily = stderrors.New("family is not configured")

// Downloader fetches an archive together with its checksum.
type Downloader interface {
	FetchWithChecksum(ctx context.Context, url string, timeout time.Duration) (*fetcher.Download, error)
}

// Target is one family's source and destination.
type Target struct {
	Family config.IPFamily
	URL    string
	Store  *store.Store
}

type Options struct {
	Downloader Downloader
	Targets    []Target
	Interval   time.Duration
	Timeout    time.Duration
	// CacheDir stores the last extracted archive per family. Empty disables
	// the cache.
	CacheDir string
}

type runner struct {
	target  Target
	running atomic.Bool
	trigger chan struct{}

	mu          sync.Mutex
	lastStarted time.Time
}

func (r *runner) started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStarted
}

func (r *runner) markStarted(t time.Time) {
	r.mu.Lock()
	r.lastStarted = t
	r.mu.Unlock()
}

type Scheduler struct {
	downloader Downloader
	interval   time.Duration
	timeout    time.Duration
	cacheDir   string

	runners map[config.IPFamily]*runner
	order   []config.IPFamily
	state   *State
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		downloader: opts.Downloader,
		interval:   opts.Interval,
		timeout:    opts.Timeout,
		cacheDir:   opts.CacheDir,
		runners:    make(map[config.IPFamily]*runner, len(opts.Targets)),
	}
	if s.interval <= 0 {
		s.interval = config.DefaultRefreshHours * time.Hour
	}

	for _, t := range opts.Targets {
		s.runners[t.Family] = &runner{target: t, trigger: make(chan struct{}, 1)}
		s.order = append(s.order, t.Family)
	}
	s.state = NewState(s.order...)

	for _, f := range s.order {
		if codes, err := s.runners[f].target.Store.Countries(); err == nil {
			countriesGauge.WithLabelValues(f.String()).Set(float64(len(codes)))
		}
	}
	return s
}

// State exposes the refresh status for readers.
func (s *Scheduler) State() *State {
	return s.state
}

// Families returns the scheduled families in configuration order.
func (s *Scheduler) Families() []config.IPFamily {
	return append([]config.IPFamily(nil), s.order...)
}

// Run starts one loop per family and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range s.order {
		r := s.runners[f]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, r)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, r *runner) {
	family := r.target.Family
	log.Infof("Starting %s refresh loop (interval %s)", family, s.interval)

	_ = s.refresh(ctx, r)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("Stopping %s refresh loop", family)
			return
		case <-timer.C:
			// A forced refresh in the meantime restarted the interval.
			if wait := s.interval - time.Since(r.started()); wait > 0 {
				timer.Reset(wait)
				continue
			}
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		timer.Reset(s.interval)
		_ = s.refresh(ctx, r)
	}
}

// Trigger asks the family's loop to refresh now. It returns false when the
// family is unknown or a refresh is already running or pending.
func (s *Scheduler) Trigger(family config.IPFamily) bool {
	r, ok := s.runners[family]
	if !ok || r.running.Load() {
		return false
	}
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RefreshNow refreshes family synchronously. It returns ErrInProgress when a
// refresh is already running.
func (s *Scheduler) RefreshNow(ctx context.Context, family config.IPFamily) error {
	r, ok := s.runners[family]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	return s.refresh(ctx, r)
}

func (s *Scheduler) refresh(ctx context.Context, r *runner) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	defer r.running.Store(false)

	family := r.target.Family
	started := time.Now()
	r.markStarted(started)
	s.state.begin(family, started)

	result, countries, checksum, err := s.run(ctx, r)
	refreshDuration.WithLabelValues(family.String()).Observe(time.Since(started).Seconds())

	if err != nil {
		refreshCounter.WithLabelValues(family.String(), resultFailure).Inc()
		s.state.fail(family, err)
		log.Errorf("Refresh of %s data failed, keeping previous data: %v", family, err)
		return err
	}

	now := time.Now()
	refreshCounter.WithLabelValues(family.String(), result).Inc()
	lastSuccessGauge.WithLabelValues(family.String()).Set(float64(now.Unix()))
	countriesGauge.WithLabelValues(family.String()).Set(float64(countries))
	s.state.succeed(family, now, countries, checksum)
	log.Infof("Refresh of %s data finished in %s (%s, %d countries)", family, time.Since(started).Round(time.Millisecond), result, countries)
	return nil
}

func (s *Scheduler) run(ctx context.Context, r *runner) (result string, countries int, checksum string, err error) {
	family := r.target.Family

	dl, err := s.downloader.FetchWithChecksum(ctx, r.target.URL, s.timeout)
	if err != nil {
		return "", 0, "", err
	}

	cachePath := s.cachePath(family)
	if cachePath != "" && !r.target.Store.IsEmpty() {
		changed, err := hashing.IsFileChanged(hashing.StaticChecksum(dl.Checksum), cachePath)
		if err != nil {
			log.Warnf("Failed to compare %s archive checksum: %v", family, err)
		} else if !changed {
			log.Infof("%s archive is unchanged, skipping extraction", family)
			codes, err := r.target.Store.Countries()
			if err != nil {
				return "", 0, "", err
			}
			return resultUnchanged, len(codes), dl.Checksum, nil
		}
	}

	s.state.setPhase(family, PhaseExtracting)
	res, err := extractor.Extract(dl.Data, r.target.Store)
	if err != nil {
		return "", 0, "", err
	}
	skippedLinesCounter.WithLabelValues(family.String()).Add(float64(res.SkippedLines))

	if cachePath != "" {
		s.saveCache(cachePath, dl)
	}

	codes, err := r.target.Store.Countries()
	if err != nil {
		return "", 0, "", err
	}
	return resultSuccess, len(codes), dl.Checksum, nil
}

func (s *Scheduler) cachePath(family config.IPFamily) string {
	if s.cacheDir == "" {
		return ""
	}
	return filepath.Join(s.cacheDir, family.String()+".tar.gz")
}

// saveCache stores the archive and its checksum. Failures are only logged.
func (s *Scheduler) saveCache(path string, dl *fetcher.Download) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warnf("Failed to create download cache directory: %v", err)
		return
	}
	if err := utils.WriteFileAtomic(path, dl.Data, 0644); err != nil {
		log.Warnf("Failed to cache archive %s: %v", path, err)
		return
	}
	if err := hashing.WriteChecksum(hashing.StaticChecksum(dl.Checksum), path); err != nil {
		log.Warnf("Failed to store checksum for %s: %v", path, err)
	}
}
