package rsc

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
)

func indexOf(t *testing.T, script, needle string) int {
	t.Helper()
	i := strings.Index(script, needle)
	if i < 0 {
		t.Fatalf("Script does not contain %q:\n%s", needle, script)
	}
	return i
}

// assertInOrder checks that steps appear in script one after another.
func assertInOrder(t *testing.T, script string, steps []string) {
	t.Helper()
	rest := script
	for _, step := range steps {
		i := strings.Index(rest, step)
		if i < 0 {
			t.Fatalf("Step %q missing or out of order:\n%s", step, script)
		}
		rest = rest[i+len(step):]
	}
}

func TestGenerate_SwapOrder(t *testing.T) {
	script := Generate("geoip-eu", []string{"1.2.3.0/24", "5.6.0.0/16"}, time.Hour, "20M")

	assertInOrder(t, script, []string{
		`/ip firewall address-list`,
		`:do { remove [find list="geoip-eu-new"] } on-error={}`,
		`:do { remove [find list="geoip-eu-old"] } on-error={}`,
		`add list="geoip-eu-new" address=1.2.3.0/24 timeout=1h`,
		`add list="geoip-eu-new" address=5.6.0.0/16 timeout=1h`,
		`:do { set [find list="geoip-eu"] list="geoip-eu-old" } on-error={}`,
		`:do { set [find list="geoip-eu-new"] list="geoip-eu" } on-error={}`,
		`:do { remove [find list="geoip-eu-old"] } on-error={}`,
	})
	if n := strings.Count(script, `remove [find list="geoip-eu-old"]`); n != 2 {
		t.Errorf("Expected stale and final clear of the old list, got %d", n)
	}

	if n := strings.Count(script, "add list="); n != 2 {
		t.Errorf("Expected 2 entries, got %d", n)
	}
	if n := strings.Count(script, "/ip firewall address-list"); n != 1 {
		t.Errorf("Expected exactly one list block, got %d", n)
	}
	if !strings.Contains(script, "tmpfs-max-size=20M") {
		t.Errorf("Expected tmpfs size in header")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	blocks := []string{"1.2.3.0/24", "5.6.0.0/16"}
	a := Generate("geoip", blocks, 25*time.Hour, "20M")
	b := Generate("geoip", blocks, 25*time.Hour, "20M")
	if a != b {
		t.Error("Identical input must render identical scripts")
	}
	if !strings.Contains(a, "timeout=1d1h") {
		t.Errorf("Expected compact timeout, got:\n%s", a)
	}
}

func TestGenerate_EmptyList(t *testing.T) {
	script := Generate("geoip", nil, time.Hour, "20M")

	assertInOrder(t, script, []string{
		`:do { remove [find list="geoip-new"] } on-error={}`,
		`:do { remove [find list="geoip-old"] } on-error={}`,
		`:do { set [find list="geoip"] list="geoip-old" } on-error={}`,
		`:do { set [find list="geoip-new"] list="geoip" } on-error={}`,
		`:do { remove [find list="geoip-old"] } on-error={}`,
	})
	if strings.Contains(script, "add list=") {
		t.Error("Empty list must not contain entries")
	}
}

func TestRender_EmptyListWarning(t *testing.T) {
	s := Render(DefaultOptions(), List{Name: "geoip-eu", Family: config.Ipv4})
	if len(s.Warnings()) != 1 || !stderrors.Is(s.Warnings()[0], errors.ErrEmptyBlockList) {
		t.Errorf("Expected EMPTY_BLOCK_LIST warning, got %v", s.Warnings())
	}
}

func TestRender_MultipleListsAndFamilies(t *testing.T) {
	opts := DefaultOptions()
	opts.Comments = true
	s := Render(opts,
		NewList("geoip-at", config.Ipv4, []string{"1.2.3.0/24"}, "AT"),
		NewList("geoip-at", config.Ipv6, []string{"2a00::/16"}, `bad "quote"`),
	)
	script := s.String()

	v4 := indexOf(t, script, "/ip firewall address-list")
	v6 := indexOf(t, script, "/ipv6 firewall address-list")
	if v4 > v6 {
		t.Error("Lists must render in the given order")
	}
	indexOf(t, script, `address=1.2.3.0/24 timeout=1d1h comment="AT"`)
	indexOf(t, script, `comment="bad \"quote\""`)
	if len(s.Warnings()) != 0 {
		t.Errorf("Unexpected warnings: %v", s.Warnings())
	}
	indexOf(t, script, "# lists: 2, entries: 2")
	if s.Entries() != 2 {
		t.Errorf("Expected 2 entries, got %d", s.Entries())
	}
}

func TestRender_NoCommentsByDefault(t *testing.T) {
	script := Render(DefaultOptions(), NewList("geoip", config.Ipv4, []string{"1.2.3.0/24"}, "AT")).String()
	if strings.Contains(script, "comment=") {
		t.Error("Comments should be off by default")
	}
}

func TestRender_NormalizesNameAndSuffixes(t *testing.T) {
	opts := Options{EntryTimeout: time.Minute, OldSuffix: "_prev", NewSuffix: "_next"}
	script := Render(opts, NewList("my list!", config.Ipv4, []string{"10.0.0.0/8"}, "")).String()

	indexOf(t, script, `add list="my_list__next" address=10.0.0.0/8 timeout=1m`)
	indexOf(t, script, `:do { set [find list="my_list_"] list="my_list__prev" } on-error={}`)
}

func TestFamilyOf(t *testing.T) {
	if FamilyOf([]string{"2001:db8::/32"}) != config.Ipv6 {
		t.Error("Expected IPv6")
	}
	if FamilyOf(nil) != config.Ipv4 {
		t.Error("Expected IPv4 for empty input")
	}
}

func TestRenderLoader(t *testing.T) {
	script, err := RenderLoader(LoaderOptions{
		URL:          "http://geoip.local:8080/custom.rsc?cc=at&zone=EU",
		TmpfsMaxSize: "32M",
	})
	if err != nil {
		t.Fatalf("RenderLoader failed: %v", err)
	}

	indexOf(t, script, "/system script")
	indexOf(t, script, `add dont-require-permissions=yes name="geoip-update"`)
	indexOf(t, script, `tmpfs-max-size=32M slot=\$ramdisk`)
	indexOf(t, script, `/tool fetch url=\"http://geoip.local:8080/custom.rsc?cc=at&zone=EU\"`)
	indexOf(t, script, `/import file-name=\"\$ramdisk/geoip-update.rsc\" verbose=yes`)
	indexOf(t, script, `\r\n`)
	indexOf(t, script, `add interval=1d name="geoip-update" on-event="geoip-update"`)
	if strings.Index(script, "/system script") > strings.Index(script, "/system scheduler") {
		t.Error("Script must be installed before the scheduler")
	}
}

func TestRenderLoader_RequiresURL(t *testing.T) {
	if _, err := RenderLoader(LoaderOptions{}); errors.CodeOf(err) != errors.ErrCodeValidation {
		t.Errorf("Expected validation error without URL, got %v", err)
	}
}

func TestEscapeString(t *testing.T) {
	got := escapeString("a\"b$c\\d\r\n")
	want := `a\"b\$c\\d\r\n`
	if got != want {
		t.Errorf("escapeString = %q, want %q", got, want)
	}
}
