package scene

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"blenderer/internal/faults"
)

// probeMarker prefixes the JSON line printed by probeExpression.
const probeMarker = "BLENDERER_SCENE_JSON:"

const defaultProbeTimeout = 2 * time.Minute

const probeExpression = `import bpy, json
s = bpy.context.scene
r = s.render
f = r.ffmpeg
crf = getattr(f, "constant_rate_factor", "")
sound = False
if s.sequence_editor is not None:
    sound = any(q.type == "SOUND" for q in s.sequence_editor.sequences_all)
print("` + probeMarker + `" + json.dumps({
    "scene": s.name,
    "frame_start": s.frame_start,
    "frame_end": s.frame_end,
    "fps": r.fps / r.fps_base,
    "resolution_x": r.resolution_x,
    "resolution_y": r.resolution_y,
    "resolution_percent": r.resolution_percentage,
    "file_format": r.image_settings.file_format,
    "video_format": f.format,
    "video_codec": f.codec,
    "autosplit": bool(f.use_autosplit),
    "lossless": crf == "LOSSLESS" or bool(getattr(f, "use_lossless_output", False)),
    "has_sound": sound,
    "file_version": ".".join(str(v) for v in bpy.data.version),
    "app_version": ".".join(str(v) for v in bpy.app.version),
}))
`

// ProbeArgs returns the blender arguments used to read scene settings.
func ProbeArgs(scenePath string) []string {
	return []string{"-b", scenePath, "--python-expr", probeExpression}
}

// Probe runs blender against scenePath and returns the active scene's render
// settings.
func Probe(ctx context.Context, binary, scenePath string) (Metadata, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "blender"
	}
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, binary, ProbeArgs(scenePath)...).CombinedOutput()
	if err != nil {
		marker := faults.ErrExternalTool
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			marker = faults.ErrTimeout
		}
		return Metadata{}, faults.Wrap(marker, "validate", "probe scene", lastLine(output), err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (Metadata, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), probeMarker)
		if !ok {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(payload), &meta); err != nil {
			return Metadata{}, faults.Wrap(faults.ErrExternalTool, "validate", "decode scene probe", "", err)
		}
		return meta, nil
	}
	return Metadata{}, faults.Wrap(faults.ErrExternalTool, "validate", "probe scene", "blender printed no scene settings", nil)
}

func lastLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}
