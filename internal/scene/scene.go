package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"blenderer/internal/faults"
	"blenderer/internal/logging"
)

var (
	// ErrResolutionNotDivisible reports a scaled resolution with an odd side.
	ErrResolutionNotDivisible = errors.New("scaled resolution is not divisible by 2")
	// ErrAutosplitEnabled reports ffmpeg autosplit output, which breaks per-range segments.
	ErrAutosplitEnabled = errors.New("autosplit output is enabled")
)

// Metadata holds the render settings of one scene.
type Metadata struct {
	Scene             string  `json:"scene" yaml:"scene"`
	FrameStart        int     `json:"frame_start" yaml:"frame_start"`
	FrameEnd          int     `json:"frame_end" yaml:"frame_end"`
	FPS               float64 `json:"fps" yaml:"fps"`
	ResolutionX       int     `json:"resolution_x" yaml:"resolution_x"`
	ResolutionY       int     `json:"resolution_y" yaml:"resolution_y"`
	ResolutionPercent int     `json:"resolution_percent" yaml:"resolution_percent"`
	FileFormat        string  `json:"file_format" yaml:"file_format"`
	VideoFormat       string  `json:"video_format" yaml:"video_format"`
	VideoCodec        string  `json:"video_codec" yaml:"video_codec"`
	Autosplit         bool    `json:"autosplit" yaml:"autosplit"`
	Lossless          bool    `json:"lossless" yaml:"lossless"`
	HasSound          bool    `json:"has_sound" yaml:"has_sound"`
	FileVersion       string  `json:"file_version" yaml:"file_version"`
	AppVersion        string  `json:"app_version" yaml:"app_version"`
}

// TotalFrames returns the inclusive frame count of the scene.
func (m Metadata) TotalFrames() int {
	return m.FrameEnd - m.FrameStart + 1
}

// ScaledResolution applies the resolution percentage. A zero percentage is
// treated as 100.
func (m Metadata) ScaledResolution() (int, int) {
	percent := m.ResolutionPercent
	if percent <= 0 {
		percent = 100
	}
	return m.ResolutionX * percent / 100, m.ResolutionY * percent / 100
}

// Extension returns the container extension for the scene's output format.
func (m Metadata) Extension() string {
	return OutputExtension(m.FileFormat, m.VideoFormat)
}

// Validate checks the settings that would make a split render unmergeable.
// A file/app version mismatch is only logged.
func (m Metadata) Validate(logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "scene")

	if m.Autosplit {
		return faults.Wrap(faults.ErrConfiguration, "validate", "scene settings",
			"uncheck autosplit output in the encoding panel", ErrAutosplitEnabled)
	}
	x, y := m.ScaledResolution()
	if x%2 != 0 || y%2 != 0 {
		return faults.Wrap(faults.ErrConfiguration, "validate", "scene settings",
			fmt.Sprintf("%dx%d", x, y), ErrResolutionNotDivisible)
	}

	if m.FileVersion != "" && m.AppVersion != "" && m.FileVersion != m.AppVersion {
		logging.WarnWithContext(logger, "blend file version differs from blender version", "scene_version_mismatch",
			logging.String("file_version", m.FileVersion),
			logging.String("app_version", m.AppVersion),
			logging.String(logging.FieldErrorHint, "re-save the scene with the installed blender to avoid conversion surprises"),
		)
	}
	logger.Debug("scene settings accepted",
		logging.String("scene", m.Scene),
		logging.Int("total_frames", m.TotalFrames()),
		logging.Int("resolution_x", x),
		logging.Int("resolution_y", y),
		logging.Bool("lossless", m.Lossless),
		logging.Bool("has_sound", m.HasSound),
	)
	return nil
}

// OutputExtension maps Blender's image file format and ffmpeg container
// format onto a file extension. Unknown formats use mp4.
func OutputExtension(fileFormat, videoFormat string) string {
	switch strings.ToUpper(strings.TrimSpace(fileFormat)) {
	case "AVI_JPEG", "AVI_RAW":
		return "avi"
	}
	switch strings.ToUpper(strings.TrimSpace(videoFormat)) {
	case "AVI", "H264", "XVID":
		return "avi"
	case "DV":
		return "dv"
	case "FLASH":
		return "flv"
	case "MKV":
		return "mkv"
	case "MPEG1":
		return "mpg"
	case "MPEG2":
		return "dvd"
	case "MPEG4":
		return "mp4"
	case "OGG":
		return "ogv"
	case "QUICKTIME":
		return "mov"
	default:
		return "mp4"
	}
}

// DefaultOutputPath replaces the scene file's extension with ext.
func DefaultOutputPath(scenePath, ext string) string {
	base := strings.TrimSuffix(scenePath, filepath.Ext(scenePath))
	return base + "." + strings.TrimPrefix(ext, ".")
}
