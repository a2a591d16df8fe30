// Package toolchaintest provides in-memory Locator and Runner fakes for
// exercising code that shells out to a package manager.
package toolchaintest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pipfetch/pipfetch/pkg/toolchain"
)

// Locator resolves only the names present in Paths.
type Locator struct {
	Paths map[string]string
}

var _ toolchain.Locator = &Locator{}

func (l *Locator) LookPath(name string) (string, error) {
	if p, ok := l.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// Line renders the call the way a shell would show it.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Has reports whether arg appears in the call's arguments.
func (c Call) Has(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// Response is what a Handler returns for one call.
type Response struct {
	Stdout string
	Err    error
}

// Runner records every call and answers through Handler. A nil Handler
// succeeds with empty output.
type Runner struct {
	Handler func(c Call) Response

	mu    sync.Mutex
	calls []Call
}

var _ toolchain.Runner = &Runner{}

func (r *Runner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := r.handle(ctx, name, args)
	return []byte(resp.Stdout), resp.Err
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	return r.handle(ctx, name, args).Err
}

func (r *Runner) handle(ctx context.Context, name string, args []string) Response {
	c := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{Err: err}
	}
	if r.Handler == nil {
		return Response{}
	}
	return r.Handler(c)
}

// Calls returns a copy of the recorded calls in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
