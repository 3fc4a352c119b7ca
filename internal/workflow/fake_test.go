package workflow

import (
	"context"
	"sync"
)

type response struct {
	out string
	err error
}

// fakeRunner replays responses in order and records each call.
type fakeRunner struct {
	mu        sync.Mutex
	responses []response
	calls     [][]string
	stdin     [][]byte
}

func (f *fakeRunner) RunAndCapture(_ context.Context, stdin []byte, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	f.stdin = append(f.stdin, stdin)
	if len(f.responses) == 0 {
		return nil, errNoResponse
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.out), nil
}

type constError string

func (e constError) Error() string { return string(e) }

const errNoResponse = constError("no scripted response")
