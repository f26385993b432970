package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// ServeIfWorker turns the process into a sandbox worker when an isolated
// Sandbox started it: it serves one job from stdin and exits. Binaries that
// run isolated sandboxes call it before anything else in main, test
// binaries in TestMain.
func ServeIfWorker() {
	if os.Getenv(WorkerEnv) != "1" {
		return
	}

	if err := serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(0)
}

// serve reads a job, limits the current process accordingly and writes one
// JSON outcome per request, each as soon as it is known.
func serve(r io.Reader, w io.Writer) error {
	var job workerJob
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return fmt.Errorf("failed to read sandbox job: %w", err)
	}

	if err := applyLimits(job.MemoryBytes, job.CPUSeconds); err != nil {
		return fmt.Errorf("failed to limit sandbox worker: %w", err)
	}

	if job.MemoryBytes > 0 {
		debug.SetMemoryLimit(int64(job.MemoryBytes / 4 * 3))
	}

	opts := []Option{WithAllocationLimits(job.MaxString, job.MaxArray)}
	if job.MaxCallStack > 0 {
		opts = append(opts, WithMaxCallStack(job.MaxCallStack))
	}

	sb := New(opts...)
	encoder := json.NewEncoder(w)

	for _, req := range job.Requests {
		result, err := sb.evaluate(context.Background(), req)
		if err := encoder.Encode(encodeOutcome(result, err)); err != nil {
			return fmt.Errorf("failed to write sandbox outcome: %w", err)
		}
	}

	return nil
}
