package progress

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Event is a single progress update, emitted on the Updates channel.
type Event struct {
	// Status is the overall state: "initialized", "started", "processing" or
	// "completed".
	Status string `json:"status"`
	// Percentage is the completion from 0.0 to 100.0.
	Percentage float64 `json:"percentage"`
	// Step names the current phase (e.g. "keys", "segments", "remux").
	Step string `json:"step"`
	// Stage is a finer description within the step.
	Stage string `json:"stage"`
	// Timestamp marks when the event occurred, in RFC3339 format.
	Timestamp string `json:"timestamp"`
}

// Reporter receives progress updates during long-running operations.
// The segment fetcher calls Increment once per completed item; the counter
// only ever moves forward.
type Reporter interface {
	// Start initializes the reporting with the total number of items.
	Start(total int64)
	// Update sets the current progress to an absolute value.
	Update(current int64, step, stage string)
	// Increment advances the progress by one item.
	Increment(step, stage string)
	// Complete marks the operation as finished.
	Complete()
	// Updates returns a channel emitting Event values. The channel is closed
	// when Complete is called.
	Updates() <-chan Event
}

type reporterOptions struct {
	throttle    time.Duration
	description string
	showBytes   bool
}

// Option configures a BarReporter.
type Option func(*reporterOptions)

// WithThrottle sets the minimum interval between events sent on the Updates
// channel. Zero (the default) disables throttling.
func WithThrottle(d time.Duration) Option {
	return func(opts *reporterOptions) {
		opts.throttle = d
	}
}

// WithDescription sets the console progress bar description.
func WithDescription(desc string) Option {
	return func(opts *reporterOptions) {
		opts.description = desc
	}
}

// WithShowBytes makes the console bar display byte counts instead of item
// counts. Off by default; segment fetch progress counts items.
func WithShowBytes(show bool) Option {
	return func(opts *reporterOptions) {
		opts.showBytes = show
	}
}

// BarReporter is the default Reporter. It renders a console progress bar on
// stderr via github.com/schollz/progressbar/v3 and mirrors updates onto a
// buffered channel.
type BarReporter struct {
	total      int64
	current    int64
	bar        *progressbar.ProgressBar
	opts       reporterOptions
	event      Event
	updatesCh  chan Event
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewReporter creates a BarReporter, applying any options.
func NewReporter(opts ...Option) *BarReporter {
	options := reporterOptions{
		description: "Downloading...",
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &BarReporter{
		opts: options,
		event: Event{
			Status:    "initialized",
			Timestamp: time.Now().Format(time.RFC3339),
		},
		lastUpdate: time.Now(),
		updatesCh:  make(chan Event, 10),
	}
}

// Start initializes the bar with the total item count.
func (r *BarReporter) Start(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.current = 0
	r.event.Status = "started"
	r.event.Percentage = 0
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	barOpts := []progressbar.Option{
		progressbar.OptionSetDescription(r.opts.description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	}
	if r.opts.showBytes {
		barOpts = append(barOpts, progressbar.OptionShowBytes(true))
	}
	r.bar = progressbar.NewOptions64(total, barOpts...)

	r.send(true)
}

// Update sets the current progress to an absolute value and re-renders.
func (r *BarReporter) Update(current int64, step, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		return
	}
	if current > r.total {
		current = r.total
	}
	if current < r.current {
		// The completed counter is monotonic.
		current = r.current
	}
	r.current = current

	percentage := 0.0
	if r.total > 0 {
		percentage = float64(current) / float64(r.total) * 100
	}
	r.event.Percentage = percentage
	r.event.Step = step
	r.event.Stage = stage
	r.event.Status = "processing"
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	_ = r.bar.Set64(current)

	r.send(false)
}

// Increment advances the progress by one item.
func (r *BarReporter) Increment(step, stage string) {
	r.mu.Lock()
	current := r.current + 1
	r.mu.Unlock()
	r.Update(current, step, stage)
}

// Complete finishes the bar and closes the Updates channel.
func (r *BarReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		return
	}

	_ = r.bar.Finish()
	r.current = r.total
	r.event.Percentage = 100
	r.event.Status = "completed"
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	r.send(true)
	r.bar = nil
	close(r.updatesCh)
}

// Updates returns the event channel.
func (r *BarReporter) Updates() <-chan Event {
	return r.updatesCh
}

// send pushes the current event onto the channel, honoring throttling.
// Caller must hold r.mu.
func (r *BarReporter) send(force bool) {
	now := time.Now()
	if !force && now.Sub(r.lastUpdate) < r.opts.throttle {
		return
	}
	r.lastUpdate = now

	select {
	case r.updatesCh <- r.event:
	default:
	}
}
