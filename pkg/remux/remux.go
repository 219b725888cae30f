package remux

import (
	"bufio"
	"context"
	"os/exec"
	"strings"

	"github.com/vodsnap/vodsnap/pkg/errors"
	"github.com/vodsnap/vodsnap/pkg/logger"
)

// protocolWhitelist is passed to ffmpeg when the input is a local playlist:
// some builds refuse file:// reads from a playlist without it. http/https/tcp/tls
// stay permitted in case the playlist still references something remote.
const protocolWhitelist = "file,http,https,tcp,tls"

// stderrTailLines caps how much ffmpeg output is kept for error reporting.
const stderrTailLines = 20

// Options configures an FFmpeg remuxer.
type Options struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg".
	Binary string
	// Logger receives ffmpeg's stderr at debug level.
	Logger logger.Logger
}

// FFmpeg repackages an HLS stream into a single container file without
// re-encoding, by invoking the external ffmpeg binary.
type FFmpeg struct {
	options Options
}

// New creates an FFmpeg remuxer.
func New(options Options) *FFmpeg {
	if options.Binary == "" {
		options.Binary = "ffmpeg"
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}
	return &FFmpeg{options: options}
}

// Check verifies that the ffmpeg binary is runnable.
func (f *FFmpeg) Check() error {
	cmd := exec.Command(f.options.Binary, "-version")
	if err := cmd.Run(); err != nil {
		return errors.New(errors.SystemError, "ffmpeg is not available", f.options.Binary, errors.ErrRemuxStart)
	}
	return nil
}

// Remux runs ffmpeg with copied video/audio codecs and the aac_adtstoasc
// bitstream filter, producing output from input. input is either a local
// playlist path (localInput true, which enables the protocol whitelist) or a
// remote manifest URL. A non-zero exit surfaces as a RemuxError carrying the
// tail of ffmpeg's stderr.
func (f *FFmpeg) Remux(ctx context.Context, input, output string, localInput bool) error {
	args := buildArgs(input, output, localInput)

	f.options.Logger.Debug("Executing ffmpeg", "remux", map[string]interface{}{
		"command": f.options.Binary + " " + strings.Join(args, " "),
	})

	cmd := exec.CommandContext(ctx, f.options.Binary, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, errors.RemuxError, "failed to create stderr pipe", errors.ErrRemuxStart)
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.RemuxError, "failed to start ffmpeg", errors.ErrRemuxStart)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		f.options.Logger.Debug(line, "ffmpeg", nil)
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		details := err.Error()
		if len(tail) > 0 {
			details += ": " + strings.Join(tail, "\n")
		}
		return errors.New(errors.RemuxError, "ffmpeg exited with error", details, errors.ErrRemuxExit)
	}
	return nil
}

// buildArgs assembles the fixed remux argument template.
func buildArgs(input, output string, localInput bool) []string {
	var args []string
	if localInput {
		args = append(args, "-protocol_whitelist", protocolWhitelist)
	}
	args = append(args,
		"-i", input,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", output,
	)
	return args
}
