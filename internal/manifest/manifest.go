package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blenderer/internal/faults"
)

// FileName is the manifest name inside a session workspace.
const FileName = "concat.txt"

// Write renders segment paths into a concat manifest at path. Segments are
// written in the order given and relative paths are made absolute.
func Write(path string, segments []string) error {
	if len(segments) == 0 {
		return faults.Wrap(faults.ErrIO, "manifest", "write", "no segments to list", nil)
	}
	body, err := Render(segments)
	if err != nil {
		return faults.Wrap(faults.ErrIO, "manifest", "resolve segment path", "", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return faults.Wrap(faults.ErrIO, "manifest", "write", path, err)
	}
	return nil
}

// Render returns the manifest text for segments.
func Render(segments []string) (string, error) {
	var b strings.Builder
	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			return "", err
		}
		b.WriteString("file ")
		b.WriteString(Quote(abs))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Quote wraps value in single quotes using the concat demuxer's escaping.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// Read parses a manifest and returns its segment paths in order.
func Read(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "manifest", "open", path, err)
	}
	defer file.Close()

	var segments []string
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rest, ok := strings.CutPrefix(text, "file ")
		if !ok {
			return nil, faults.Wrap(faults.ErrIO, "manifest", "parse", fmt.Sprintf("line %d", line), errors.New("missing file directive"))
		}
		value, err := unquote(strings.TrimSpace(rest))
		if err != nil {
			return nil, faults.Wrap(faults.ErrIO, "manifest", "parse", fmt.Sprintf("line %d", line), err)
		}
		segments = append(segments, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "manifest", "read", path, err)
	}
	return segments, nil
}

// unquote reverses Quote. Unquoted values are returned as-is.
func unquote(value string) (string, error) {
	if !strings.HasPrefix(value, "'") {
		return value, nil
	}
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case c == '\'':
			inQuote = !inQuote
		case c == '\\' && !inQuote && i+1 < len(value):
			i++
			b.WriteByte(value[i])
		default:
			b.WriteByte(c)
		}
	}
	if inQuote {
		return "", errors.New("unterminated quote")
	}
	return b.String(), nil
}
