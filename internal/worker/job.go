package worker

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"blenderer/internal/frames"
)

// Job is one fully specified worker invocation. Treat it as immutable once built.
type Job struct {
	Index      int          `json:"index"`
	Range      frames.Range `json:"range"`
	OutputPath string       `json:"output_path"`
	Command    []string     `json:"command"`
}

// Binary returns the executable token of the command.
func (j Job) Binary() string {
	if len(j.Command) == 0 {
		return ""
	}
	return j.Command[0]
}

// Args returns the argument tokens following the executable.
func (j Job) Args() []string {
	if len(j.Command) < 2 {
		return nil
	}
	out := make([]string, len(j.Command)-1)
	copy(out, j.Command[1:])
	return out
}

// CommandLine renders the command for logs only. It is never executed.
func (j Job) CommandLine() string {
	quoted := make([]string, len(j.Command))
	for i, tok := range j.Command {
		if tok == "" || strings.ContainsAny(tok, " \t'\"\\$") {
			quoted[i] = strconv.Quote(tok)
			continue
		}
		quoted[i] = tok
	}
	return strings.Join(quoted, " ")
}

// Spec carries the session-wide inputs shared by every job.
type Spec struct {
	Executable   string
	ScenePath    string
	OutputDir    string
	Extension    string
	FilterScript string
	FilterArgs   []string
}

// Build constructs the job for the range at the given partition index.
//
// The resulting command is
//
//	[executable, -b, scene, (-P script)?, -s, start, -e, end, -o, output, -a, (--, args...)?]
func Build(spec Spec, index int, r frames.Range) (Job, error) {
	executable := strings.TrimSpace(spec.Executable)
	if executable == "" {
		return Job{}, fmt.Errorf("build worker job: executable is required")
	}
	scene := strings.TrimSpace(spec.ScenePath)
	if scene == "" {
		return Job{}, fmt.Errorf("build worker job: scene path is required")
	}
	if strings.TrimSpace(spec.OutputDir) == "" {
		return Job{}, fmt.Errorf("build worker job: output directory is required")
	}
	if index < 0 {
		return Job{}, fmt.Errorf("build worker job: negative index %d", index)
	}

	output := OutputPath(spec.OutputDir, index, r, spec.Extension)

	command := []string{executable, "-b", scene}
	if script := strings.TrimSpace(spec.FilterScript); script != "" {
		command = append(command, "-P", script)
	}
	command = append(command,
		"-s", strconv.Itoa(r.Start),
		"-e", strconv.Itoa(r.End),
		"-o", output,
		"-a",
	)
	if len(spec.FilterArgs) > 0 {
		command = append(command, "--")
		command = append(command, spec.FilterArgs...)
	}

	return Job{
		Index:      index,
		Range:      r,
		OutputPath: output,
		Command:    command,
	}, nil
}

// BuildAll builds one job per range, preserving partition order.
func BuildAll(spec Spec, ranges []frames.Range) ([]Job, error) {
	jobs := make([]Job, 0, len(ranges))
	for i, r := range ranges {
		job, err := Build(spec, i, r)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// OutputPath derives the artifact path for a job. Index and bounds make it
// unique within a session.
func OutputPath(dir string, index int, r frames.Range, extension string) string {
	ext := strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if ext == "" {
		ext = "mp4"
	}
	name := fmt.Sprintf("%d_%d-%d.%s", index+1, r.Start, r.End, ext)
	return filepath.Join(dir, name)
}

// OutputPaths lists the artifact paths of jobs in the order given.
func OutputPaths(jobs []Job) []string {
	paths := make([]string, 0, len(jobs))
	for _, job := range jobs {
		paths = append(paths, job.OutputPath)
	}
	return paths
}
