package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"blenderer/internal/render"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err unless the session already logged it or the user interrupted.
func reportError(w io.Writer, err error) {
	var stageErr *render.StageError
	if err == nil || errors.Is(err, context.Canceled) || errors.As(err, &stageErr) {
		return
	}
	fmt.Fprintln(w, err)
}
