package scene

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blenderer/internal/faults"
)

func validMetadata() Metadata {
	return Metadata{
		Scene:             "Scene",
		FrameStart:        1,
		FrameEnd:          250,
		FPS:               24,
		ResolutionX:       1920,
		ResolutionY:       1080,
		ResolutionPercent: 100,
		FileFormat:        "FFMPEG",
		VideoFormat:       "MPEG4",
		VideoCodec:        "H264",
		FileVersion:       "4.2.1",
		AppVersion:        "4.2.1",
	}
}

func TestTotalFramesAndResolution(t *testing.T) {
	meta := validMetadata()
	if meta.TotalFrames() != 250 {
		t.Fatalf("TotalFrames = %d, want 250", meta.TotalFrames())
	}
	meta.ResolutionPercent = 50
	if x, y := meta.ScaledResolution(); x != 960 || y != 540 {
		t.Fatalf("ScaledResolution = %dx%d", x, y)
	}
}

func TestValidateAcceptsEvenResolution(t *testing.T) {
	if err := validMetadata().Validate(nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsOddScaledResolution(t *testing.T) {
	meta := validMetadata()
	meta.ResolutionX = 1921
	err := meta.Validate(nil)
	if !errors.Is(err, ErrResolutionNotDivisible) || !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected resolution configuration error, got %v", err)
	}

	meta = validMetadata()
	meta.ResolutionX, meta.ResolutionY, meta.ResolutionPercent = 1010, 1000, 35
	if err := meta.Validate(nil); !errors.Is(err, ErrResolutionNotDivisible) {
		t.Fatalf("expected scaled resolution error, got %v", err)
	}
}

func TestValidateRejectsAutosplit(t *testing.T) {
	meta := validMetadata()
	meta.Autosplit = true
	err := meta.Validate(nil)
	if !errors.Is(err, ErrAutosplitEnabled) || !faults.IsConfiguration(err) {
		t.Fatalf("expected autosplit configuration error, got %v", err)
	}
}

func TestValidateWarnsOnVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	meta := validMetadata()
	meta.FileVersion = "3.6.0"

	if err := meta.Validate(logger); err != nil {
		t.Fatalf("version mismatch must not fail: %v", err)
	}
	if !strings.Contains(buf.String(), "scene_version_mismatch") {
		t.Fatalf("expected mismatch warning, got %s", buf.String())
	}
}

func TestOutputExtension(t *testing.T) {
	cases := []struct {
		file, video, want string
	}{
		{"AVI_JPEG", "", "avi"},
		{"AVI_RAW", "MPEG4", "avi"},
		{"FFMPEG", "H264", "avi"},
		{"FFMPEG", "XVID", "avi"},
		{"FFMPEG", "DV", "dv"},
		{"FFMPEG", "FLASH", "flv"},
		{"FFMPEG", "MKV", "mkv"},
		{"FFMPEG", "MPEG1", "mpg"},
		{"FFMPEG", "MPEG2", "dvd"},
		{"FFMPEG", "MPEG4", "mp4"},
		{"FFMPEG", "OGG", "ogv"},
		{"FFMPEG", "QUICKTIME", "mov"},
		{"PNG", "", "mp4"},
	}
	for _, tc := range cases {
		if got := OutputExtension(tc.file, tc.video); got != tc.want {
			t.Fatalf("OutputExtension(%q, %q) = %q, want %q", tc.file, tc.video, got, tc.want)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	if got := DefaultOutputPath("/projects/intro.blend", "mkv"); got != "/projects/intro.mkv" {
		t.Fatalf("DefaultOutputPath = %q", got)
	}
}

func TestLoadDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	body := `scene: Scene
frame_start: 1
frame_end: 120
fps: 30
resolution_x: 1280
resolution_y: 720
resolution_percent: 100
file_format: FFMPEG
video_format: QUICKTIME
video_codec: H264
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	meta, err := LoadDescriptor(path)
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	if meta.TotalFrames() != 120 || meta.Extension() != "mov" || meta.FPS != 30 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestParseDescriptorRejectsUnknownKeys(t *testing.T) {
	_, err := ParseDescriptor([]byte("frame_start: 1\nframe_end: 10\nframes_total: 10\n"))
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseDescriptorRejectsInvertedRange(t *testing.T) {
	_, err := ParseDescriptor([]byte("frame_start: 10\nframe_end: 1\n"))
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := ParseDescriptor(nil); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty descriptor, got %v", err)
	}
}

func TestProbeParsesMarkerLine(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "blender")
	script := `#!/bin/sh
echo "Blender 4.2.1"
echo "Read blend: $2"
echo 'BLENDERER_SCENE_JSON:{"scene":"Scene","frame_start":10,"frame_end":19,"fps":25,"resolution_x":640,"resolution_y":360,"resolution_percent":100,"file_format":"FFMPEG","video_format":"MKV","video_codec":"H264","autosplit":false,"lossless":true,"has_sound":false,"file_version":"4.2.1","app_version":"4.2.1"}'
echo "Blender quit"
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	meta, err := Probe(context.Background(), stub, "/projects/intro.blend")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if meta.FrameStart != 10 || meta.TotalFrames() != 10 || meta.Extension() != "mkv" || !meta.Lossless {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestProbeWithoutMarkerFails(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "blender")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'Blender quit'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(context.Background(), stub, "/projects/intro.blend"); !errors.Is(err, faults.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestProbeArgs(t *testing.T) {
	args := ProbeArgs("/projects/intro.blend")
	if len(args) != 4 || args[0] != "-b" || args[1] != "/projects/intro.blend" || args[2] != "--python-expr" {
		t.Fatalf("unexpected args: %v", args)
	}
	if !strings.Contains(args[3], probeMarker) {
		t.Fatal("probe expression must print the marker")
	}
}
