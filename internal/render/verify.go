package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"blenderer/internal/faults"
	"blenderer/internal/logging"
	"blenderer/internal/media/ffprobe"
	"blenderer/internal/worker"
)

// verifySegments probes every artifact. A missing file or one without a
// video stream fails the fleet; a frame count that differs from the range is
// only logged.
func verifySegments(ctx context.Context, binary string, jobs []worker.Job, logger *slog.Logger) error {
	var problems []string
	for _, job := range jobs {
		if _, err := os.Stat(job.OutputPath); err != nil {
			problems = append(problems, fmt.Sprintf("worker %d: missing artifact", job.Index+1))
			continue
		}
		probe, err := ffprobe.Inspect(ctx, binary, job.OutputPath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("worker %d: %v", job.Index+1, err))
			continue
		}
		if probe.VideoStreamCount() == 0 {
			problems = append(problems, fmt.Sprintf("worker %d: no video stream", job.Index+1))
			continue
		}
		if n, ok := probe.VideoFrameCount(); ok && n != job.Range.Len() {
			logger.Warn("segment frame count differs from its range",
				logging.String(logging.FieldEventType, "segment_frame_mismatch"),
				logging.Int(logging.FieldWorkerIndex, job.Index+1),
				logging.Int("expected_frames", job.Range.Len()),
				logging.Int("actual_frames", n),
			)
		}
	}
	if len(problems) > 0 {
		return faults.Wrap(faults.ErrFleet, "fleet", "verify segments", strings.Join(problems, "; "), nil)
	}
	logger.Debug("segments verified", logging.Int("segments", len(jobs)))
	return nil
}

// summarizeOutput logs the merged artifact's duration. Failures are ignored.
func summarizeOutput(ctx context.Context, binary, output string, logger *slog.Logger) {
	probe, err := ffprobe.Inspect(ctx, binary, output)
	if err != nil {
		logger.Debug("final artifact probe failed", logging.Error(err))
		return
	}
	logger.Info("final artifact",
		logging.String("output", output),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
		logging.Int64("size_bytes", probe.SizeBytes()),
		logging.Int("video_streams", probe.VideoStreamCount()),
		logging.Int("audio_streams", probe.AudioStreamCount()),
	)
}
