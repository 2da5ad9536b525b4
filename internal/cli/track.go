package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"focus-session-service/internal/config"
	"focus-session-service/internal/focus"
	"focus-session-service/internal/logging"
	"focus-session-service/internal/transport/wsclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTrackCmd replays recorded face landmarks through the focus tracker and
// reports to a running classroom as a student.
func NewTrackCmd(configPath, port *string) *cobra.Command {
	var (
		landmarksPath string
		serverURL     string
		name          string
		loop          bool
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run the focus tracker against a JSONL landmark stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = fmt.Sprintf("ws://localhost:%s/ws", *port)
			}
			return runTracker(cmd.Context(), *configPath, trackOptions{
				landmarksPath: landmarksPath,
				serverURL:     serverURL,
				name:          name,
				loop:          loop,
			})
		},
	}
	cmd.Flags().StringVar(&landmarksPath, "landmarks", "", "JSONL file with one frame per line (required)")
	cmd.Flags().StringVar(&serverURL, "server", "", "classroom websocket url (default ws://localhost:<port>/ws)")
	cmd.Flags().StringVar(&name, "name", "Anonymous", "display name to join with")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the first frame at end of file")
	_ = cmd.MarkFlagRequired("landmarks")
	return cmd
}

type trackOptions struct {
	landmarksPath string
	serverURL     string
	name          string
	loop          bool
}

func runTracker(ctx context.Context, configPath string, opts trackOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	frames, err := loadFrames(opts.landmarksPath)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames in %s", opts.landmarksPath)
	}

	reporter := wsclient.NewReporter(opts.serverURL, opts.name, logger)
	defer reporter.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	detector := &replayDetector{frames: frames, loop: opts.loop, done: cancel}
	tracker := focus.NewTracker(detector, reporter, focus.WithLogger(logger))
	detector.visibility = tracker.SetTabVisible

	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()
	go func() {
		last := ""
		for s := range updates {
			if s.Cause != last {
				logger.Info("focus changed", zap.String("cause", s.Cause), zap.Float64("score", s.Score))
				last = s.Cause
			}
		}
	}()

	logger.Info("tracking", zap.String("server", opts.serverURL), zap.Int("frames", len(frames)))
	return tracker.Run(ctx)
}

// frame is one line of the landmark stream. A null face means no detection;
// tabVisible, when present, switches tab visibility before the frame.
type frame struct {
	Face       *focus.Landmarks `json:"face"`
	TabVisible *bool            `json:"tabVisible,omitempty"`
}

func loadFrames(path string) ([]frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFrames(f)
}

func readFrames(r io.Reader) ([]frame, error) {
	var frames []frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fr frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, fr)
	}
	return frames, scanner.Err()
}

var errStreamEnded = errors.New("landmark stream ended")

// replayDetector hands out recorded frames, one per detection.
type replayDetector struct {
	mu         sync.Mutex
	frames     []frame
	next       int
	loop       bool
	visibility func(bool)
	done       func()
}

func (d *replayDetector) Detect(context.Context) (*focus.Landmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.frames) {
		if !d.loop {
			d.done()
			return nil, errStreamEnded
		}
		d.next = 0
	}
	fr := d.frames[d.next]
	d.next++
	if fr.TabVisible != nil && d.visibility != nil {
		d.visibility(*fr.TabVisible)
	}
	return fr.Face, nil
}
