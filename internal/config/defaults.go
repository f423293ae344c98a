package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath              = "~/.config/blenderer/config.toml"
	defaultLogDir                  = "~/.local/share/blenderer/logs"
	defaultHistoryDBName           = "history.db"
	defaultBlenderBinary           = "blender"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultFleetPolicy             = "wait_all"
	defaultTerminationGraceSeconds = 5
	defaultMergeTimeoutSeconds     = 600
	defaultStaleAfterHours         = 24
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"

	// BlenderEnv overrides render.blender_binary when set.
	BlenderEnv = "BLENDERER_BLENDER"
)

// Fleet policy names accepted by fleet.policy.
const (
	PolicyWaitAll  = "wait_all"
	PolicyFailFast = "fail_fast"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir(),
			LogDir:       defaultLogDir,
		},
		Render: Render{
			BlenderBinary: defaultBlenderBinary,
		},
		Fleet: Fleet{
			Policy:                  defaultFleetPolicy,
			TerminationGraceSeconds: defaultTerminationGraceSeconds,
		},
		Merge: Merge{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultMergeTimeoutSeconds,
		},
		Workspace: Workspace{
			StaleAfterHours: defaultStaleAfterHours,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkspaceDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "blenderer", "workspaces")
	}
	return filepath.Join(os.TempDir(), "blenderer")
}
