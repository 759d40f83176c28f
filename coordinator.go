package beaker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Coordinator compiles a precompile tree depth first: every dependency of a
// node finishes before the node's own step runs.
type Coordinator struct {
	compiler Compiler
	cfg      *coordinatorConfig
}

// NewCoordinator creates a Coordinator that assembles programs with c.
func NewCoordinator(c Compiler, opts ...CoordinatorOption) *Coordinator {
	cfg := defaultCoordinatorConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Coordinator{compiler: c, cfg: cfg}
}

// Compile is shorthand for NewCoordinator(c, opts...).Compile(ctx, root).
func Compile(ctx context.Context, c Compiler, root Node, opts ...CoordinatorOption) error {
	return NewCoordinator(c, opts...).Compile(ctx, root)
}

// Compile checks the tree rooted at root for cycles and then compiles it in
// post-order. A node reachable along several paths compiles once. A failing
// node is reported as a CompileError; each ancestor wraps it in a
// ChildCompilationError and skips its own step.
func (co *Coordinator) Compile(ctx context.Context, root Node) error {
	if err := checkCycles(root); err != nil {
		return err
	}

	start := time.Now()
	co.cfg.logger.Debug("Compiling precompiles", "root", root.Name(), "concurrency", co.cfg.concurrency)

	var err error
	if co.cfg.concurrency <= 1 {
		err = (&sequentialRun{co: co, done: make(map[Node]error)}).visit(ctx, root)
	} else {
		r := &concurrentRun{
			co:    co,
			sem:   semaphore.NewWeighted(int64(co.cfg.concurrency)),
			tasks: make(map[Node]*compileTask),
		}
		err = r.visit(ctx, root)
	}
	if err != nil {
		co.cfg.logger.Debug("Precompile failed", "root", root.Name(), "err", err)
		return err
	}
	co.cfg.logger.Debug("Compiled precompiles", "root", root.Name(), "elapsed", time.Since(start))
	return nil
}

// step runs a node's own compile step.
func (co *Coordinator) step(ctx context.Context, n Node) error {
	if err := ctx.Err(); err != nil {
		return &CompileError{Node: n.Name(), Err: err}
	}
	start := time.Now()
	if err := n.compile(ctx, co.compiler); err != nil {
		return &CompileError{Node: n.Name(), Err: err}
	}
	co.cfg.logger.Trace("Compiled precompile", "node", n.Name(), "elapsed", time.Since(start))
	return nil
}

type sequentialRun struct {
	co   *Coordinator
	done map[Node]error
}

func (r *sequentialRun) visit(ctx context.Context, n Node) error {
	if err, ok := r.done[n]; ok {
		return err
	}
	err := r.compileNode(ctx, n)
	r.done[n] = err
	return err
}

func (r *sequentialRun) compileNode(ctx context.Context, n Node) error {
	for _, dep := range n.Dependencies() {
		if err := r.visit(ctx, dep); err != nil {
			return &ChildCompilationError{Parent: n.Name(), Child: dep.Name(), Err: err}
		}
	}
	return r.co.step(ctx, n)
}

// compileTask is the shared result of compiling one node.
type compileTask struct {
	done chan struct{}
	err  error
}

type concurrentRun struct {
	co  *Coordinator
	sem *semaphore.Weighted

	mu    sync.Mutex
	tasks map[Node]*compileTask
}

func (r *concurrentRun) visit(ctx context.Context, n Node) error {
	r.mu.Lock()
	task, ok := r.tasks[n]
	if !ok {
		task = &compileTask{done: make(chan struct{})}
		r.tasks[n] = task
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-task.done:
			return task.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	task.err = r.compileNode(ctx, n)
	close(task.done)
	return task.err
}

func (r *concurrentRun) compileNode(ctx context.Context, n Node) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, dep := range n.Dependencies() {
		g.Go(func() error {
			if err := r.visit(gctx, dep); err != nil {
				return &ChildCompilationError{Parent: n.Name(), Child: dep.Name(), Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// A slot is held only for the own step, never while waiting on
	// dependencies.
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return &CompileError{Node: n.Name(), Err: err}
	}
	defer r.sem.Release(1)
	return r.co.step(ctx, n)
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// checkCycles walks the tree with a three-colour DFS and reports the first
// back edge as a CycleError.
func checkCycles(root Node) error {
	state := make(map[Node]visitState)
	var path []Node

	var walk func(n Node) error
	walk = func(n Node) error {
		switch state[n] {
		case visiting:
			var names []string
			for i := len(path) - 1; i >= 0; i-- {
				if path[i] == n {
					for _, p := range path[i:] {
						names = append(names, p.Name())
					}
					break
				}
			}
			return &CycleError{Path: append(names, n.Name())}
		case visited:
			return nil
		}
		state[n] = visiting
		path = append(path, n)
		for _, dep := range n.Dependencies() {
			if err := walk(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[n] = visited
		return nil
	}
	return walk(root)
}
