package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"
)

// WorkerEnv marks a process started as a sandbox worker.
const WorkerEnv = "NOVA_SANDBOX_WORKER"

const (
	// DefaultMemoryLimit caps the data segment of a worker process.
	DefaultMemoryLimit = 256 << 20

	workerStartup   = time.Second
	workerWaitDelay = 100 * time.Millisecond
	maxWorkerOutput = 16 << 20
	stderrTail      = 4 << 10
)

// Isolation configures the worker process of an isolated Sandbox.
type Isolation struct {
	// Command is the executable started as the worker. Empty means the
	// current executable, which must call ServeIfWorker first thing in main.
	Command string
	Args    []string
	// MemoryBytes caps the worker's data segment. Zero means
	// DefaultMemoryLimit.
	MemoryBytes uint64
}

type workerJob struct {
	MaxCallStack int       `json:"maxCallStack"`
	MaxString    int       `json:"maxString"`
	MaxArray     int       `json:"maxArray"`
	MemoryBytes  uint64    `json:"memoryBytes"`
	CPUSeconds   uint64    `json:"cpuSeconds"`
	Requests     []Request `json:"requests"`
}

type workerOutcome struct {
	Value  any    `json:"value,omitempty"`
	Truthy bool   `json:"truthy,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

const (
	kindTimeout = "timeout"
	kindMemory  = "memory"
	kindPanic   = "panic"
	kindError   = "error"
)

// workerError carries an error message across the process boundary while
// keeping its sentinel for errors.Is.
type workerError struct {
	kind    error
	message string
}

func (e *workerError) Error() string { return e.message }
func (e *workerError) Unwrap() error { return e.kind }

func encodeOutcome(result Result, err error) workerOutcome {
	if err != nil {
		kind := kindError

		switch {
		case errors.Is(err, ErrTimeout):
			kind = kindTimeout
		case errors.Is(err, ErrMemoryLimit):
			kind = kindMemory
		case errors.Is(err, ErrPanic):
			kind = kindPanic
		}

		return workerOutcome{Error: err.Error(), Kind: kind}
	}

	if _, err := json.Marshal(result.Value); err != nil {
		return workerOutcome{Error: "result is not serializable: " + err.Error(), Kind: kindError}
	}

	return workerOutcome{Value: result.Value, Truthy: result.Truthy}
}

func (o workerOutcome) decode() Outcome {
	switch o.Kind {
	case "":
		return Outcome{Result: Result{Value: o.Value, Truthy: o.Truthy}}
	case kindTimeout:
		return Outcome{Err: ErrTimeout}
	case kindMemory:
		return Outcome{Err: &workerError{kind: ErrMemoryLimit, message: o.Error}}
	case kindPanic:
		return Outcome{Err: &workerError{kind: ErrPanic, message: o.Error}}
	default:
		return Outcome{Err: &workerError{message: o.Error}}
	}
}

func (s *Sandbox) runIsolated(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	budget := workerStartup
	for _, req := range reqs {
		budget += req.budget()
	}

	memory := s.isolation.MemoryBytes
	if memory == 0 {
		memory = DefaultMemoryLimit
	}

	job := workerJob{
		MaxCallStack: s.maxCallStack,
		MaxString:    s.maxString,
		MaxArray:     s.maxArray,
		MemoryBytes:  memory,
		CPUSeconds:   uint64(math.Ceil(budget.Seconds())) + 1,
		Requests:     reqs,
	}

	count, err := s.spawn(ctx, budget, job, func(index int, o workerOutcome) {
		outcomes[index] = o.decode()
	})
	if err != nil {
		for i := count; i < len(reqs); i++ {
			outcomes[i] = Outcome{Err: err}
		}
	}

	return outcomes
}

// spawn runs job in a worker and hands each outcome to emit as it arrives.
// It returns how many outcomes were received and, when the worker did not
// answer every request, why.
func (s *Sandbox) spawn(ctx context.Context, budget time.Duration, job workerJob, emit func(int, workerOutcome)) (int, error) {
	command := s.isolation.Command
	if command == "" {
		executable, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrWorker, err)
		}

		command = executable
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encode job: %w", ErrWorker, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, s.isolation.Args...)
	cmd.Env = append(os.Environ(), WorkerEnv+"=1")
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = workerWaitDelay

	var stderr tailBuffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWorker, err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: failed to start: %w", ErrWorker, err)
	}

	decoder := json.NewDecoder(io.LimitReader(stdout, maxWorkerOutput))
	count := 0

	for count < len(job.Requests) {
		var outcome workerOutcome
		if err := decoder.Decode(&outcome); err != nil {
			break
		}

		emit(count, outcome)
		count++
	}

	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if count == len(job.Requests) {
		return count, nil
	}

	return count, workerFailure(ctx, runCtx, waitErr, stderr.String())
}

func workerFailure(ctx, runCtx context.Context, waitErr error, stderr string) error {
	switch {
	case ctx.Err() != nil:
		return context.Cause(ctx)
	case strings.Contains(stderr, "out of memory"):
		return fmt.Errorf("%w: worker ran out of memory", ErrMemoryLimit)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), cpuExceeded(waitErr):
		return ErrTimeout
	case waitErr == nil:
		return fmt.Errorf("%w: incomplete output", ErrWorker)
	default:
		return fmt.Errorf("%w: %w: %s", ErrWorker, waitErr, lastLine(stderr))
	}
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}

	return text
}

// tailBuffer keeps the last bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTail {
		t.buf = t.buf[len(t.buf)-stderrTail:]
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
