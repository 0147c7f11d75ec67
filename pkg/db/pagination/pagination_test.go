package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Page
		want Page
	}{
		{"defaults", Page{}, Page{Skip: 0, Limit: 100}},
		{"negative skip", Page{Skip: -5, Limit: 10}, Page{Skip: 0, Limit: 10}},
		{"limit capped", Page{Limit: 5000}, Page{Skip: 0, Limit: 1000}},
		{"passthrough", Page{Skip: 20, Limit: 50}, Page{Skip: 20, Limit: 50}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("%s: Normalize(%+v) = %+v, want %+v", tc.name, tc.in, got, tc.want)
		}
	}
}
