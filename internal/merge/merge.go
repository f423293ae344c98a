package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"blenderer/internal/faults"
	"blenderer/internal/logging"
)

const (
	defaultBinary  = "ffmpeg"
	defaultTimeout = 10 * time.Minute
	outputLimit    = 8192
)

// commandRunner executes a command and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures a Driver.
type Options struct {
	FFmpegBinary string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Driver runs the merge step.
type Driver struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// NewDriver constructs a Driver. Zero values fall back to ffmpeg and a ten
// minute timeout.
func NewDriver(opts Options) *Driver {
	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = defaultBinary
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Driver{
		binary:  binary,
		timeout: timeout,
		logger:  logging.NewComponentLogger(opts.Logger, "merge"),
		run:     defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (d *Driver) WithCommandRunner(r commandRunner) {
	if d != nil && r != nil {
		d.run = r
	}
}

// Timeout reports the bound applied to each merge command.
func (d *Driver) Timeout() time.Duration { return d.timeout }

// ConcatArgs returns the ffmpeg arguments that join the manifest's segments
// into outputPath without re-encoding.
func ConcatArgs(manifestPath, outputPath string) []string {
	return []string{"-f", "concat", "-safe", "0", "-y", "-i", manifestPath, "-c", "copy", outputPath}
}

// MuxAudioArgs returns the ffmpeg arguments that take video from videoPath
// and the first audio stream from audioPath.
func MuxAudioArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-movflags", "faststart",
		outputPath,
	}
}

// Concat joins the segments listed in manifestPath into outputPath.
func (d *Driver) Concat(ctx context.Context, manifestPath, outputPath string) error {
	if strings.TrimSpace(manifestPath) == "" || strings.TrimSpace(outputPath) == "" {
		return faults.Wrap(faults.ErrMerge, "merge", "concat", "manifest and output paths are required", nil)
	}
	if _, err := os.Stat(manifestPath); err != nil {
		return faults.Wrap(faults.ErrMerge, "merge", "concat", "manifest not found", err)
	}
	return d.execute(ctx, "concat", outputPath, ConcatArgs(manifestPath, outputPath))
}

// MuxAudio replaces the audio of videoPath with audioPath's first audio
// stream, writing outputPath.
func (d *Driver) MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if _, err := os.Stat(audioPath); err != nil {
		return faults.Wrap(faults.ErrMerge, "merge", "mux audio", "audio source not found", err)
	}
	return d.execute(ctx, "mux_audio", outputPath, MuxAudioArgs(videoPath, audioPath, outputPath))
}

func (d *Driver) execute(ctx context.Context, operation, outputPath string, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	command := append([]string{d.binary}, args...)
	d.logger.Debug("executing ffmpeg",
		logging.String("operation", operation),
		logging.Strings("command", command),
		logging.Duration("timeout", d.timeout),
	)

	started := time.Now()
	output, err := d.run(runCtx, d.binary, args...)
	if err != nil {
		mergeErr := &Error{
			Operation: operation,
			Command:   command,
			Output:    tail(output, outputLimit),
			Err:       err,
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			mergeErr.TimedOut = true
			mergeErr.Timeout = d.timeout
		}
		return mergeErr
	}
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return &Error{
			Operation: operation,
			Command:   command,
			Output:    tail(output, outputLimit),
			Err:       fmt.Errorf("ffmpeg did not produce output: %w", statErr),
		}
	}

	d.logger.Info("ffmpeg step complete",
		logging.String(logging.FieldEventType, "merge_"+operation+"_complete"),
		logging.String("output", outputPath),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Error reports a failed or timed-out merge command.
type Error struct {
	Operation string
	Command   []string
	Output    string
	TimedOut  bool
	Timeout   time.Duration
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ffmpeg ")
	b.WriteString(e.Operation)
	if e.TimedOut {
		fmt.Fprintf(&b, " timed out after %s", e.Timeout)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString(": ")
		b.WriteString(lastLine(out))
	}
	return b.String()
}

// Unwrap exposes the merge marker, the timeout marker when applicable, and
// the underlying process error.
func (e *Error) Unwrap() []error {
	errs := []error{faults.ErrMerge}
	if e.TimedOut {
		errs = append(errs, faults.ErrTimeout)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}

func tail(output []byte, limit int) string {
	if len(output) > limit {
		output = output[len(output)-limit:]
	}
	return strings.TrimSpace(string(output))
}

func lastLine(output string) string {
	if idx := strings.LastIndexByte(output, '\n'); idx >= 0 {
		return strings.TrimSpace(output[idx+1:])
	}
	return output
}
