package resolver

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/zones"
)

type mapSource map[string][]string

func (m mapSource) Blocks(code string) ([]string, error) {
	return m[code], nil
}

type failingSource struct{}

func (failingSource) Blocks(code string) ([]string, error) {
	return nil, fmt.Errorf("disk on fire")
}

func testZones() *zones.Map {
	return zones.NewMap([]zones.Zone{
		{Code: "EU", Countries: []string{"at", "de"}},
		{Code: "DACH", Countries: []string{"de", "at", "ch"}},
	}, zones.SourceBuiltin)
}

func testStore() mapSource {
	return mapSource{
		"at": {"1.2.3.0/24"},
		"de": {"5.6.0.0/16"},
		"fr": {"7.0.0.0/8", "1.2.3.0/24"},
	}
}

func TestResolve_Zone(t *testing.T) {
	res, err := Resolve(Selection{Zones: []string{"EU"}, Family: config.Ipv4}, testZones(), testStore())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !reflect.DeepEqual(res.Blocks(), []string{"1.2.3.0/24", "5.6.0.0/16"}) {
		t.Errorf("Blocks = %v", res.Blocks())
	}
	if !reflect.DeepEqual(res.Zones, []string{"EU"}) {
		t.Errorf("Zones = %v", res.Zones)
	}
}

func TestResolve_OrderingAndDedup(t *testing.T) {
	// EU = [at, de]; AT selected directly as well must not be duplicated.
	res, err := Resolve(Selection{Zones: []string{"eu"}, Countries: []string{"AT"}}, testZones(), testStore())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(res.Codes, []string{"at", "de"}) {
		t.Errorf("Codes = %v, want [at de]", res.Codes)
	}

	// Overlapping zones: members follow the first zone, then new ones.
	res, err = Resolve(Selection{Zones: []string{"DACH", "EU"}, Countries: []string{"fr"}}, testZones(), testStore())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(res.Codes, []string{"de", "at", "fr"}) {
		t.Errorf("Codes = %v", res.Codes)
	}
	if !reflect.DeepEqual(res.Skipped, []string{"ch"}) {
		t.Errorf("Skipped = %v", res.Skipped)
	}
	// fr's 1.2.3.0/24 already came from at.
	want := []string{"5.6.0.0/16", "1.2.3.0/24", "7.0.0.0/8"}
	if !reflect.DeepEqual(res.Blocks(), want) {
		t.Errorf("Blocks = %v, want %v", res.Blocks(), want)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	sel := Selection{Zones: []string{"DACH"}, Countries: []string{"fr", "at"}}
	first, err := Resolve(sel, testZones(), testStore())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := Resolve(sel, testZones(), testStore())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Resolution changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		src  BlockSource
		want error
	}{
		{"empty selection", Selection{}, testStore(), errors.ErrEmptySelection},
		{"unknown zone", Selection{Zones: []string{"EU", "MARS"}}, testStore(), errors.ErrUnknownZone},
		{"no data", Selection{Countries: []string{"jp", "xyz"}}, testStore(), errors.ErrEmptySelection},
		{"wrong-family custom only", Selection{Custom: []string{"2001:db8::/32"}, Family: config.Ipv4}, testStore(), errors.ErrEmptySelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.sel, testZones(), tt.src)
			if !stderrors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolve_StoreFailure(t *testing.T) {
	_, err := Resolve(Selection{Countries: []string{"at"}}, testZones(), failingSource{})
	if errors.CodeOf(err) != errors.ErrCodeInternal {
		t.Errorf("Expected INTERNAL_ERROR, got %v", err)
	}
}

func TestResolve_Custom(t *testing.T) {
	sel := Selection{
		Countries: []string{"at"},
		Custom:    []string{"10.0.0.1/8\n1.2.3.0/24, 192.168.1.1", "bogus 2001:db8::/32"},
		Family:    config.Ipv4,
	}
	res, err := Resolve(sel, testZones(), testStore())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(res.Groups) != 2 || res.Groups[1].Name != CustomGroup {
		t.Fatalf("Groups = %+v", res.Groups)
	}
	want := []string{"10.0.0.0/8", "192.168.1.1/32"}
	if !reflect.DeepEqual(res.Groups[1].Blocks, want) {
		t.Errorf("Custom blocks = %v, want %v", res.Groups[1].Blocks, want)
	}
}

func TestResolve_Aggregate(t *testing.T) {
	src := mapSource{
		"at": {"10.0.1.0/24", "10.0.0.0/24", "10.0.0.128/25"},
	}
	res, err := Resolve(Selection{Countries: []string{"at"}, Aggregate: true}, testZones(), src)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(res.Blocks(), []string{"10.0.0.0/23"}) {
		t.Errorf("Blocks = %v", res.Blocks())
	}
}

func TestParseCustom_IPv6(t *testing.T) {
	got := ParseCustom([]string{"2001:db8::1/32;10.0.0.0/8;::ffff:1.2.3.4;fe80::1%eth0"}, config.Ipv6)
	if !reflect.DeepEqual(got, []string{"2001:db8::/32"}) {
		t.Errorf("ParseCustom = %v", got)
	}
}

func TestAggregate(t *testing.T) {
	got := Aggregate([]string{"192.168.0.0/24", "192.168.1.0/24", "10.0.0.0/8", "10.1.0.0/16", "junk"})
	want := []string{"10.0.0.0/8", "192.168.0.0/23"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Aggregate = %v, want %v", got, want)
	}
}
