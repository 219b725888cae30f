package manifest

import (
	"strings"
	"testing"

	"github.com/vodsnap/vodsnap/pkg/errors"
)

func mustResolver(t *testing.T, u string) *Resolver {
	t.Helper()
	r, err := NewResolver(u)
	if err != nil {
		t.Fatalf("NewResolver(%q) failed: %v", u, err)
	}
	return r
}

func TestIsMaster(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nlow.m3u8\n"
	media := "#EXTM3U\n#EXTINF:10.0,\nsegment0.ts\n#EXT-X-ENDLIST\n"

	if !IsMaster(master) {
		t.Error("IsMaster() = false for a master playlist")
	}
	if IsMaster(media) {
		t.Error("IsMaster() = true for a media playlist")
	}
}

func TestSelectVariantHighestBandwidth(t *testing.T) {
	master := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360",
		"low/index.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080",
		"high/index.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720",
		"mid/index.m3u8",
	}, "\n")

	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	want := "https://cdn.example.com/vod/high/index.m3u8"
	if got != want {
		t.Errorf("SelectVariant() = %q, want %q", got, want)
	}
}

func TestSelectVariantTieKeepsFirst(t *testing.T) {
	master := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:BANDWIDTH=100",
		"first.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=100",
		"second.m3u8",
	}, "\n")

	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	if got != "https://cdn.example.com/vod/first.m3u8" {
		t.Errorf("Tie should keep the first variant, got %q", got)
	}
}

func TestSelectVariantMissingBandwidthRanksLowest(t *testing.T) {
	master := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:RESOLUTION=640x360",
		"nobw.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=1",
		"tiny.m3u8",
	}, "\n")

	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	if got != "https://cdn.example.com/vod/tiny.m3u8" {
		t.Errorf("Declared bandwidth should beat a missing one, got %q", got)
	}
}

func TestSelectVariantOnlyUndeclaredBandwidth(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:RESOLUTION=640x360\nonly.m3u8\n"

	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	if got != "https://cdn.example.com/vod/only.m3u8" {
		t.Errorf("A lone variant without BANDWIDTH is still selectable, got %q", got)
	}
}

func TestSelectVariantSkipsBlankLines(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\n\n\nlow.m3u8\n"

	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	if got != "https://cdn.example.com/vod/low.m3u8" {
		t.Errorf("URI should be the next non-blank line, got %q", got)
	}
}

func TestSelectVariantNoVariant(t *testing.T) {
	res := mustResolver(t, "https://cdn.example.com/vod/master.m3u8")

	_, err := SelectVariant("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\n", res)
	if err == nil {
		t.Fatal("SelectVariant() should fail when no variant yields a URI")
	}
	if !errors.IsType(err, errors.ManifestError) {
		t.Errorf("Expected a ManifestError, got %v", err)
	}
}

func TestSelectVariantPropagatesQuery(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nchunked/index.m3u8\n"

	res := mustResolver(t, "https://usher.example.com/vod/123.m3u8?token=abc&sig=def")
	got, err := SelectVariant(master, res)
	if err != nil {
		t.Fatalf("SelectVariant() failed: %v", err)
	}
	want := "https://usher.example.com/vod/chunked/index.m3u8?token=abc&sig=def"
	if got != want {
		t.Errorf("SelectVariant() = %q, want %q", got, want)
	}
}
