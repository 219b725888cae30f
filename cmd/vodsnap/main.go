package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vodsnap/vodsnap/pkg/config"
	"github.com/vodsnap/vodsnap/pkg/fetcher"
	"github.com/vodsnap/vodsnap/pkg/logger"
	"github.com/vodsnap/vodsnap/pkg/progress"
	"github.com/vodsnap/vodsnap/pkg/vod"
)

var (
	manifestURL string
	outputPath  string

	workers      int
	fetchTimeout time.Duration
	fetchRetries int
	rateLimit    float64
	userAgent    string

	ffmpegBinary string
	keepWorkDir  bool
)

func main() {
	logger.Init()

	// .env is optional; missing file just means flag defaults apply.
	_ = config.Load()

	rootCmd := &cobra.Command{
		Use:   "vodsnap",
		Short: "vodsnap - localize an HLS VOD and remux it into a single file",
		Long: `vodsnap downloads every key and segment referenced by an HLS manifest into a
private working directory, rewrites the playlist against the local copies, and
remuxes it into a single container file without re-encoding. When localization
is not possible it falls back to streaming remux of the original manifest URL.`,
		Run: runDownload,
	}

	rootCmd.Flags().StringVarP(&manifestURL, "input", "i", "", "Manifest URL with token/signature query embedded (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (required)")

	rootCmd.Flags().IntVar(&workers, "workers",
		config.GetEnvInt(config.EnvWorkers, fetcher.DefaultWorkers), "Segment download concurrency")
	rootCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout",
		config.GetEnvDuration(config.EnvTimeout, fetcher.DefaultTimeout), "Per-attempt download timeout")
	rootCmd.Flags().IntVar(&fetchRetries, "fetch-retries",
		config.GetEnvInt(config.EnvRetries, fetcher.DefaultRetries), "Download attempts per key/segment")
	rootCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Max download starts per second (0 = unlimited)")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header for all requests")

	rootCmd.Flags().StringVar(&ffmpegBinary, "ffmpeg",
		config.GetEnv(config.EnvFFmpeg, "ffmpeg"), "Path to ffmpeg binary")
	rootCmd.Flags().BoolVar(&keepWorkDir, "keep-workdir", false, "Keep the working directory after a successful run")

	rootCmd.MarkFlagRequired("input")
	rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runDownload(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("Received signal, shutting down", "main", map[string]interface{}{
			"signal": sig.String(),
		})
		cancel()
	}()

	progressReporter := progress.NewReporter(
		progress.WithDescription("Downloading segments..."),
		progress.WithThrottle(200*time.Millisecond),
	)

	options := vod.Options{
		ManifestURL:  manifestURL,
		OutputPath:   outputPath,
		Workers:      workers,
		FetchTimeout: fetchTimeout,
		FetchRetries: fetchRetries,
		RateLimit:    rateLimit,
		UserAgent:    userAgent,
		FFmpegBinary: ffmpegBinary,
		KeepWorkDir:  keepWorkDir,
	}

	orch, err := vod.New(options, progressReporter)
	if err != nil {
		logger.Fatal("Invalid options", "main", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	logger.Info("Starting download", "main", map[string]interface{}{
		"input":   manifestURL,
		"output":  outputPath,
		"workers": workers,
	})

	outputFilePath, err := orch.Run(ctx)
	if err != nil {
		data := map[string]interface{}{
			"error": err.Error(),
		}
		if dir := orch.WorkDir(); dir != "" {
			data["workdir"] = dir
		}
		logger.Fatal("Download failed", "main", data)
		return
	}

	absPath, _ := filepath.Abs(outputFilePath)
	logger.Info("Download completed successfully", "main", map[string]interface{}{
		"output_path": absPath,
	})
}
