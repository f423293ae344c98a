package history

import "time"

// Session is one journaled render session.
type Session struct {
	ID           string     `json:"id"`
	ScenePath    string     `json:"scene_path"`
	OutputPath   string     `json:"output_path"`
	StartFrame   int        `json:"start_frame"`
	TotalFrames  int        `json:"total_frames"`
	Workers      int        `json:"workers"`
	Policy       string     `json:"policy"`
	State        string     `json:"state"`
	FailedStage  string     `json:"failed_stage,omitempty"`
	ErrorClass   string     `json:"error_class,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExitCodes    []int      `json:"exit_codes,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Duration returns the elapsed session time, or zero while it is running.
func (s Session) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Outcome is the terminal state written by Finish. Plan fields are known
// only once validation passed and stay zero otherwise.
type Outcome struct {
	OutputPath   string
	StartFrame   int
	TotalFrames  int
	Workers      int
	State        string
	FailedStage  string
	ErrorClass   string
	ErrorMessage string
	ExitCodes    []int
}
