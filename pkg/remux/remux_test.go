package remux

import (
	"reflect"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	f := New(Options{})
	if f.options.Binary != "ffmpeg" {
		t.Errorf("Default binary = %q, want %q", f.options.Binary, "ffmpeg")
	}
}

func TestBuildArgsLocalInput(t *testing.T) {
	args := buildArgs("/tmp/work/local.m3u8", "out.mp4", true)

	want := []string{
		"-protocol_whitelist", "file,http,https,tcp,tls",
		"-i", "/tmp/work/local.m3u8",
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", "out.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("buildArgs() mismatch:\nGot:  %v\nWant: %v", args, want)
	}
}

func TestBuildArgsRemoteInput(t *testing.T) {
	args := buildArgs("https://usher.example.com/vod/1.m3u8?token=t", "out.mp4", false)

	want := []string{
		"-i", "https://usher.example.com/vod/1.m3u8?token=t",
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", "out.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("buildArgs() mismatch:\nGot:  %v\nWant: %v", args, want)
	}
}
