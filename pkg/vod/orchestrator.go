package vod

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/vodsnap/vodsnap/pkg/errors"
	"github.com/vodsnap/vodsnap/pkg/fetcher"
	"github.com/vodsnap/vodsnap/pkg/logger"
	"github.com/vodsnap/vodsnap/pkg/manifest"
	"github.com/vodsnap/vodsnap/pkg/progress"
	"github.com/vodsnap/vodsnap/pkg/remux"
)

// State is the orchestrator's current phase.
type State string

const (
	StateIdle              State = "idle"
	StateFetchingManifest  State = "fetching_manifest"
	StateResolvingVariant  State = "resolving_variant"
	StateLocalizing        State = "localizing"
	StateWritingManifest   State = "writing_manifest"
	StateRemuxing          State = "remuxing"
	StateStreamingFallback State = "streaming_fallback"
	StateDone              State = "done"
)

// localManifestName is the rewritten playlist's file name inside the
// working directory.
const localManifestName = "local.m3u8"

// Remuxer is the external remux collaborator. localInput selects the local
// playlist invocation (protocol whitelist enabled) versus direct streaming
// from a remote URL.
type Remuxer interface {
	Remux(ctx context.Context, input, output string, localInput bool) error
}

// Options configures an Orchestrator run.
type Options struct {
	// ManifestURL is the stream manifest URL, with any access token and
	// signature already embedded in its query string. Required.
	ManifestURL string
	// OutputPath is where the final container file is written. Required.
	OutputPath string

	// Workers bounds segment download concurrency. Defaults to
	// fetcher.DefaultWorkers.
	Workers int
	// FetchTimeout is the per-attempt download timeout.
	FetchTimeout time.Duration
	// FetchRetries is the attempt count per key/segment.
	FetchRetries int
	// RateLimit caps download starts per second. Zero means unlimited.
	RateLimit float64
	// UserAgent is sent on every HTTP request when non-empty.
	UserAgent string

	// FFmpegBinary overrides the ffmpeg executable name.
	FFmpegBinary string
	// KeepWorkDir retains the working directory even on success.
	KeepWorkDir bool
}

// Orchestrator drives one download: fetch the manifest, pick a variant,
// localize keys and segments into a private working directory, write the
// rewritten playlist, and remux it into the output file. When localization
// fails after the manifest was obtained, it degrades to remuxing the remote
// manifest URL directly.
type Orchestrator struct {
	options Options
	client  *fetcher.Client
	remuxer Remuxer
	progRep progress.Reporter
	logger  logger.Logger
	state   State
	workDir string
}

// New creates an Orchestrator with default dependencies.
func New(options Options, progressReporter progress.Reporter) (*Orchestrator, error) {
	return NewWithDeps(options, progressReporter, logger.NewLogger(), nil, nil)
}

// NewWithDeps creates an Orchestrator with injected dependencies. A nil
// client or remuxer gets a default built from the options.
func NewWithDeps(options Options, progressReporter progress.Reporter, log logger.Logger, client *fetcher.Client, remuxer Remuxer) (*Orchestrator, error) {
	if options.ManifestURL == "" {
		return nil, errors.New(errors.ValidationError, "manifest URL is required", "", errors.ErrBadOptions)
	}
	if options.OutputPath == "" {
		return nil, errors.New(errors.ValidationError, "output path is required", "", errors.ErrBadOptions)
	}
	if options.Workers <= 0 {
		options.Workers = fetcher.DefaultWorkers
	}

	if log == nil {
		log = logger.NewLogger()
	}
	if client == nil {
		client = fetcher.New(fetcher.Options{
			Timeout:   options.FetchTimeout,
			Retries:   options.FetchRetries,
			RateLimit: options.RateLimit,
			UserAgent: options.UserAgent,
			Logger:    log,
		})
	}
	if remuxer == nil {
		remuxer = remux.New(remux.Options{
			Binary: options.FFmpegBinary,
			Logger: log,
		})
	}

	return &Orchestrator{
		options: options,
		client:  client,
		remuxer: remuxer,
		progRep: progressReporter,
		logger:  log,
		state:   StateIdle,
	}, nil
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return o.state
}

// WorkDir returns the working directory path, or "" before one is created.
func (o *Orchestrator) WorkDir() string {
	return o.workDir
}

// Run executes the full pipeline and returns the output path. A manifest
// fetch failure is fatal immediately: no working directory exists yet and
// the fallback is not attempted, since the fallback needs nothing the
// manifest fetch did not. Any later localization failure falls back to
// streaming remux of the original URL.
func (o *Orchestrator) Run(ctx context.Context) (string, error) {
	o.setState(StateFetchingManifest)
	o.logger.Info("Fetching manifest", "vod", map[string]interface{}{
		"url": o.options.ManifestURL,
	})

	text, err := o.client.FetchText(ctx, o.options.ManifestURL)
	if err != nil {
		return "", err
	}

	localPath, err := o.localize(ctx, text)
	if err != nil {
		return o.fallback(ctx, err)
	}

	o.setState(StateRemuxing)
	o.logger.Info("Remuxing local playlist", "vod", map[string]interface{}{
		"playlist": localPath,
		"output":   o.options.OutputPath,
	})
	if err := o.remuxer.Remux(ctx, localPath, o.options.OutputPath, true); err != nil {
		o.keepWorkDirForInspection()
		return "", err
	}
	if err := o.verifyOutput(); err != nil {
		o.keepWorkDirForInspection()
		return "", err
	}

	o.finish(true)
	return o.options.OutputPath, nil
}

// localize turns the fetched manifest into a fully local playlist and
// returns its path. Every error from here is a candidate for the fallback.
func (o *Orchestrator) localize(ctx context.Context, text string) (string, error) {
	resolver, err := manifest.NewResolver(o.options.ManifestURL)
	if err != nil {
		return "", err
	}

	if manifest.IsMaster(text) {
		o.setState(StateResolvingVariant)
		variantURL, err := manifest.SelectVariant(text, resolver)
		if err != nil {
			return "", err
		}
		o.logger.Info("Selected variant", "vod", map[string]interface{}{
			"url": variantURL,
		})

		text, err = o.client.FetchText(ctx, variantURL)
		if err != nil {
			return "", err
		}
		// Reference resolution and query propagation restart from the
		// variant's own location.
		resolver, err = manifest.NewResolver(variantURL)
		if err != nil {
			return "", err
		}
	}

	dir, err := os.MkdirTemp("", "vodsnap_")
	if err != nil {
		return "", errors.Wrap(err, errors.SystemError, "failed to create working directory", errors.ErrWorkDir)
	}
	o.workDir = dir

	plan, err := manifest.BuildPlan(text, resolver, dir)
	if err != nil {
		return "", err
	}

	o.setState(StateLocalizing)
	// Keys first: segments may need them for decryption during remux, and a
	// missing key fails the run before any segment bandwidth is spent.
	for _, key := range plan.Keys {
		o.logger.Info("Downloading key", "vod", map[string]interface{}{
			"url":  key.URI,
			"path": key.LocalPath,
		})
		if err := o.client.DownloadFile(ctx, key.URI, key.LocalPath); err != nil {
			return "", errors.Wrap(err, errors.FetchError, "failed to download key", errors.ErrKeyFetch)
		}
	}

	o.logger.Info("Downloading segments", "vod", map[string]interface{}{
		"count":   len(plan.Segments),
		"workers": o.options.Workers,
		"dir":     dir,
	})
	items := make([]fetcher.Item, len(plan.Segments))
	for i, seg := range plan.Segments {
		items[i] = fetcher.Item{Index: seg.Index, URL: seg.URI, Path: seg.LocalPath}
	}
	if o.progRep != nil {
		o.progRep.Start(int64(len(items)))
	}
	err = o.client.FetchAll(ctx, items, o.options.Workers, o.progRep)
	if o.progRep != nil {
		o.progRep.Complete()
	}
	if err != nil {
		return "", err
	}

	o.setState(StateWritingManifest)
	localPath := filepath.Join(dir, localManifestName)
	if err := os.WriteFile(localPath, []byte(plan.LocalManifest()), 0644); err != nil {
		return "", errors.Wrap(err, errors.SystemError, "failed to write local playlist", errors.ErrWriteLocal)
	}
	return localPath, nil
}

// fallback remuxes the original manifest URL directly. It runs without the
// protections of retry and bounded concurrency but still produces output
// when localization is infeasible.
func (o *Orchestrator) fallback(ctx context.Context, cause error) (string, error) {
	o.setState(StateStreamingFallback)
	o.logger.Error("Localization failed, falling back to streaming remux", "vod", map[string]interface{}{
		"error": cause.Error(),
	})

	if err := o.remuxer.Remux(ctx, o.options.ManifestURL, o.options.OutputPath, false); err != nil {
		o.keepWorkDirForInspection()
		return "", err
	}
	if err := o.verifyOutput(); err != nil {
		o.keepWorkDirForInspection()
		return "", err
	}

	o.finish(false)
	return o.options.OutputPath, nil
}

// verifyOutput checks the terminal success condition: the output file exists
// and is non-empty.
func (o *Orchestrator) verifyOutput() error {
	info, err := os.Stat(o.options.OutputPath)
	if err != nil {
		return errors.Wrap(err, errors.RemuxError, "output file missing", errors.ErrRemuxNoOutput)
	}
	if info.Size() == 0 {
		return errors.New(errors.RemuxError, "output file is empty", o.options.OutputPath, errors.ErrRemuxNoOutput)
	}
	return nil
}

// finish logs the terminal state and applies the working directory policy:
// removed on success unless KeepWorkDir is set.
func (o *Orchestrator) finish(localized bool) {
	o.setState(StateDone)
	o.logger.Info("Download complete", "vod", map[string]interface{}{
		"output":    o.options.OutputPath,
		"localized": localized,
	})

	if o.workDir == "" {
		return
	}
	if o.options.KeepWorkDir {
		o.logger.Info("Keeping working directory", "vod", map[string]interface{}{
			"dir": o.workDir,
		})
		return
	}
	if err := os.RemoveAll(o.workDir); err != nil {
		o.logger.Warn("Failed to remove working directory", "vod", map[string]interface{}{
			"dir":   o.workDir,
			"error": err.Error(),
		})
	}
}

// keepWorkDirForInspection logs where the retained artifacts live after a
// terminal failure.
func (o *Orchestrator) keepWorkDirForInspection() {
	if o.workDir == "" {
		return
	}
	o.logger.Error("Keeping working directory for inspection", "vod", map[string]interface{}{
		"dir": o.workDir,
	})
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.logger.Debug("State change", "vod", map[string]interface{}{
		"state": string(s),
	})
}
