package pipeline

import (
	"errors"
	"testing"

	"github.com/slipway-dev/slipway/types"
)

func TestResolveVersion(t *testing.T) {
	cases := []struct {
		name     string
		explicit string
		tag      string
		want     types.Version
		wantErr  bool
	}{
		{name: "explicit wins over tag", explicit: "2024-spring", tag: "v1.2.3", want: "2024-spring"},
		{name: "explicit alone", explicit: "v9.9.9", want: "v9.9.9"},
		{name: "tag alone", tag: "v1.2.3", want: "v1.2.3"},
		{name: "tag with suffix", tag: "v1.2.3-rc.1", want: "v1.2.3-rc.1"},
		{name: "malformed tag", tag: "release-1", wantErr: true},
		{name: "neither", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveVersion(tc.explicit, tc.tag)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("version = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveVersion_NeitherIsEmptyVersionError(t *testing.T) {
	_, err := ResolveVersion("", "")
	if !errors.Is(err, types.ErrEmptyVersion) {
		t.Fatalf("error = %v, want ErrEmptyVersion", err)
	}
}

func TestDistributionEnabled(t *testing.T) {
	if DistributionEnabled("") {
		t.Error("empty target must not enable distribution")
	}
	if !DistributionEnabled("studio/demo") {
		t.Error("non-empty target must enable distribution")
	}
}
