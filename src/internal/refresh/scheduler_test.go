package refresh

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/fetcher"
	"github.com/wifx/geoip-rsc/src/internal/store"
)

const (
	v4URL = "http://example/v4.tar.gz"
	v6URL = "http://example/v6.tar.gz"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type response struct {
	data []byte
	err  error
}

type stubDownloader struct {
	mu        sync.Mutex
	responses map[string]response
	calls     map[string]int
	times     map[string][]time.Time
	// block, when set, is waited on before answering.
	block   chan struct{}
	entered chan struct{}
}

func newStub() *stubDownloader {
	return &stubDownloader{
		responses: make(map[string]response),
		calls:     make(map[string]int),
		times:     make(map[string][]time.Time),
	}
}

func (s *stubDownloader) set(url string, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = response{data: data, err: err}
}

func (s *stubDownloader) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *stubDownloader) callTimes(url string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times[url]...)
}

func (s *stubDownloader) FetchWithChecksum(ctx context.Context, url string, timeout time.Duration) (*fetcher.Download, error) {
	s.mu.Lock()
	s.calls[url]++
	s.times[url] = append(s.times[url], time.Now())
	resp := s.responses[url]
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.err != nil {
		return nil, resp.err
	}
	sum := md5.Sum(resp.data)
	return &fetcher.Download{Data: resp.data, Checksum: hex.EncodeToString(sum[:])}, nil
}

func newTestScheduler(t *testing.T, d Downloader, cacheDir string) (*Scheduler, *store.Store, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s4 := store.New(filepath.Join(dir, "ipv4"), config.Ipv4)
	s6 := store.New(filepath.Join(dir, "ipv6"), config.Ipv6)
	s := NewScheduler(Options{
		Downloader: d,
		Targets: []Target{
			{Family: config.Ipv4, URL: v4URL, Store: s4},
			{Family: config.Ipv6, URL: v6URL, Store: s6},
		},
		Interval: time.Hour,
		Timeout:  time.Second,
		CacheDir: cacheDir,
	})
	return s, s4, s6
}

func TestRefreshNow_Success(t *testing.T) {
	d := newStub()
	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n", "de.zone": "5.6.0.0/16\n"}), nil)
	s, s4, _ := newTestScheduler(t, d, "")

	if err := s.RefreshNow(context.Background(), config.Ipv4); err != nil {
		t.Fatalf("RefreshNow failed: %v", err)
	}

	st, ok := s.State().Get(config.Ipv4)
	if !ok {
		t.Fatal("Missing IPv4 state")
	}
	if st.Phase != PhaseIdle || st.LastSuccess.IsZero() || st.LastError != nil || st.Countries != 2 {
		t.Errorf("Unexpected state %+v", st)
	}
	if st.LastAttempt.After(st.LastSuccess) {
		t.Errorf("LastAttempt %v after LastSuccess %v", st.LastAttempt, st.LastSuccess)
	}

	blocks, _ := s4.Blocks("at")
	if !reflect.DeepEqual(blocks, []string{"1.2.3.0/24"}) {
		t.Errorf("Stored blocks = %v", blocks)
	}
}

func TestRefreshNow_FailureIsolation(t *testing.T) {
	d := newStub()
	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n"}), nil)
	d.set(v6URL, buildArchive(t, map[string]string{"at.zone": "2a00::/16\n"}), nil)
	s, s4, s6 := newTestScheduler(t, d, "")

	ctx := context.Background()
	if err := s.RefreshNow(ctx, config.Ipv4); err != nil {
		t.Fatal(err)
	}
	if err := s.RefreshNow(ctx, config.Ipv6); err != nil {
		t.Fatal(err)
	}
	v6Before, _ := s.State().Get(config.Ipv6)

	d.set(v4URL, nil, errors.NewHTTPStatusError(v4URL, 503))
	err := s.RefreshNow(ctx, config.Ipv4)
	if !stderrors.Is(err, errors.ErrFetchHTTPStatus) {
		t.Fatalf("Expected HTTP status error, got %v", err)
	}

	v4, _ := s.State().Get(config.Ipv4)
	if v4.LastError == nil || v4.Phase != PhaseIdle {
		t.Errorf("IPv4 state should record the failure: %+v", v4)
	}
	v6After, _ := s.State().Get(config.Ipv6)
	if !v6After.LastSuccess.Equal(v6Before.LastSuccess) || v6After.LastError != nil {
		t.Errorf("IPv6 state changed: before %+v after %+v", v6Before, v6After)
	}

	if blocks, _ := s4.Blocks("at"); !reflect.DeepEqual(blocks, []string{"1.2.3.0/24"}) {
		t.Errorf("IPv4 data must be kept after failure, got %v", blocks)
	}
	if blocks, _ := s6.Blocks("at"); !reflect.DeepEqual(blocks, []string{"2a00::/16"}) {
		t.Errorf("IPv6 data changed: %v", blocks)
	}
}

func TestRefreshNow_CorruptArchiveKeepsData(t *testing.T) {
	d := newStub()
	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n"}), nil)
	s, s4, _ := newTestScheduler(t, d, "")
	if err := s.RefreshNow(context.Background(), config.Ipv4); err != nil {
		t.Fatal(err)
	}

	d.set(v4URL, []byte("garbage"), nil)
	if err := s.RefreshNow(context.Background(), config.Ipv4); !stderrors.Is(err, errors.ErrCorruptArchive) {
		t.Fatalf("Expected CORRUPT_ARCHIVE, got %v", err)
	}
	if blocks, _ := s4.Blocks("at"); len(blocks) != 1 {
		t.Errorf("Data must be kept, got %v", blocks)
	}
}

func TestRefreshNow_UnchangedArchiveSkipsExtraction(t *testing.T) {
	d := newStub()
	archive := buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n"})
	d.set(v4URL, archive, nil)
	cacheDir := t.TempDir()
	s, s4, _ := newTestScheduler(t, d, cacheDir)

	if err := s.RefreshNow(context.Background(), config.Ipv4); err != nil {
		t.Fatal(err)
	}

	var renames atomic.Int32
	s4.BeforeRename = func(string) { renames.Add(1) }

	if err := s.RefreshNow(context.Background(), config.Ipv4); err != nil {
		t.Fatal(err)
	}
	if renames.Load() != 0 {
		t.Errorf("Unchanged archive must not be extracted again, got %d writes", renames.Load())
	}
	st, _ := s.State().Get(config.Ipv4)
	if st.Countries != 1 {
		t.Errorf("Countries = %d", st.Countries)
	}

	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "9.9.9.0/24\n"}), nil)
	if err := s.RefreshNow(context.Background(), config.Ipv4); err != nil {
		t.Fatal(err)
	}
	if renames.Load() != 1 {
		t.Errorf("Changed archive must be extracted, got %d writes", renames.Load())
	}
}

func TestRefreshNow_UnknownFamily(t *testing.T) {
	d := newStub()
	s := NewScheduler(Options{Downloader: d, Targets: []Target{{Family: config.Ipv4, URL: v4URL, Store: store.New(t.TempDir(), config.Ipv4)}}})

	if err := s.RefreshNow(context.Background(), config.Ipv6); !stderrors.Is(err, ErrUnknownFamily) {
		t.Errorf("Expected ErrUnknownFamily, got %v", err)
	}
	if s.Trigger(config.Ipv6) {
		t.Error("Trigger for unknown family must fail")
	}
}

func TestRefresh_ConcurrentTriggersCoalesce(t *testing.T) {
	d := newStub()
	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n"}), nil)
	d.block = make(chan struct{})
	d.entered = make(chan struct{}, 1)
	s, _, _ := newTestScheduler(t, d, "")

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- s.RefreshNow(ctx, config.Ipv4) }()

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not start")
	}

	st, _ := s.State().Get(config.Ipv4)
	if st.Phase != PhaseFetching {
		t.Errorf("Expected fetching phase, got %s", st.Phase)
	}

	if err := s.RefreshNow(ctx, config.Ipv4); !stderrors.Is(err, ErrInProgress) {
		t.Errorf("Second refresh should be coalesced, got %v", err)
	}
	if s.Trigger(config.Ipv4) {
		t.Error("Trigger during a running refresh should be a no-op")
	}

	close(d.block)
	if err := <-done; err != nil {
		t.Fatalf("First refresh failed: %v", err)
	}
	if n := d.count(v4URL); n != 1 {
		t.Errorf("Expected one download, got %d", n)
	}
}

func TestRun_InitialRefreshAndTrigger(t *testing.T) {
	d := newStub()
	d.set(v4URL, buildArchive(t, map[string]string{"at.zone": "1.2.3.0/24\n"}), nil)
	d.set(v6URL, nil, errors.NewNetworkError(v6URL, stderrors.New("unreachable")))
	s, _, _ := newTestScheduler(t, d, "")

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	waitFor(t, func() bool { return d.count(v4URL) == 1 && d.count(v6URL) == 1 })
	waitFor(t, func() bool {
		v4, _ := s.State().Get(config.Ipv4)
		return !v4.LastSuccess.IsZero() && v4.Phase == PhaseIdle
	})

	first := s.Trigger(config.Ipv4)
	if !first {
		t.Fatal("Trigger should be accepted while idle")
	}
	waitFor(t, func() bool { return d.count(v4URL) == 2 })

	v6, _ := s.State().Get(config.Ipv6)
	if v6.LastError == nil || !v6.LastSuccess.IsZero() {
		t.Errorf("IPv6 should have failed without success: %+v", v6)
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_IntervalRestartsOnTrigger(t *testing.T) {
	const interval = 100 * time.Millisecond
	const slack = 10 * time.Millisecond

	d := newStub()
	d.set(v4URL, nil, errors.NewNetworkError(v4URL, stderrors.New("unreachable")))
	s := NewScheduler(Options{
		Downloader: d,
		Targets:    []Target{{Family: config.Ipv4, URL: v4URL, Store: store.New(t.TempDir(), config.Ipv4)}},
		Interval:   interval,
		Timeout:    time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	// Initial refresh plus two ticks, all failing.
	waitFor(t, func() bool { return d.count(v4URL) >= 3 })
	times := d.callTimes(v4URL)
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < interval-slack {
			t.Fatalf("Failed refresh retried after %s, want at least %s", gap, interval)
		}
	}
	st, _ := s.State().Get(config.Ipv4)
	if st.LastError == nil {
		t.Error("Failure should be recorded")
	}

	// Trigger halfway through an interval.
	time.Sleep(time.Until(d.callTimes(v4URL)[d.count(v4URL)-1].Add(interval / 2)))
	before := d.count(v4URL)
	waitFor(t, func() bool { return s.Trigger(config.Ipv4) })
	waitFor(t, func() bool { return d.count(v4URL) > before })
	triggered := d.callTimes(v4URL)[before]

	waitFor(t, func() bool { return len(d.callTimes(v4URL)) > before+1 })
	next := d.callTimes(v4URL)[before+1]
	if gap := next.Sub(triggered); gap < interval-slack {
		t.Errorf("Tick after trigger came %s later, want a full interval of %s", gap, interval)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met in time")
}

func TestState_Snapshot(t *testing.T) {
	st := NewState(config.Ipv6, config.Ipv4)
	now := time.Now()
	st.begin(config.Ipv4, now)
	st.succeed(config.Ipv4, now, 3, "abc")

	snap := st.Snapshot()
	if len(snap) != 2 || snap[0].Family != config.Ipv4 || snap[1].Family != config.Ipv6 {
		t.Fatalf("Unexpected snapshot %+v", snap)
	}
	if snap[0].Countries != 3 || snap[0].Checksum != "abc" {
		t.Errorf("Unexpected IPv4 state %+v", snap[0])
	}

	snap[0].Countries = 99
	again, _ := st.Get(config.Ipv4)
	if again.Countries != 3 {
		t.Error("Snapshot must return copies")
	}
}
