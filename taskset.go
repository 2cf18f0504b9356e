package turnloop

// TaskSet tracks a collection of fire-and-forget promises (work started but
// whose result the caller doesn't need to Wait on individually), draining
// each entry as it settles and routing any error to the installed OnError
// handler. This is the elevated component SPEC_FULL.md adds for managing,
// e.g., one in-flight per-connection handler per Listener.Accept without
// leaking a slot per completed connection.
type TaskSet struct {
	loop    *Loop
	onError func(error)
	tasks   map[int]promiseNode
	nextID  int
}

// NewTaskSet constructs an empty set with no error handler installed; until
// OnError is called, errors are routed through the loop's rate-limited
// logger instead of being dropped silently.
func NewTaskSet(l *Loop) *TaskSet {
	return &TaskSet{loop: l, tasks: make(map[int]promiseNode)}
}

// OnError installs the handler invoked when a tracked task settles with an
// error. Replaces any previously installed handler.
func (ts *TaskSet) OnError(fn func(error)) {
	ts.onError = fn
}

// Add starts tracking p. Once it settles (success or error), it is removed
// automatically; an error is reported via the installed OnError handler.
func (ts *TaskSet) Add(p Promise[struct{}]) {
	id := ts.nextID
	ts.nextID++
	ts.tasks[id] = p.node
	p.node.onReady(ts.loop, func() {
		_, err := p.node.get()
		delete(ts.tasks, id)
		if err != nil {
			if ts.onError != nil {
				ts.onError(err)
			} else {
				ts.loop.logSpurious(ts, "unhandled TaskSet error: "+err.Error())
			}
		}
	})
}

// Len reports the number of still-outstanding tasks.
func (ts *TaskSet) Len() int { return len(ts.tasks) }

// Close cancels every outstanding task and empties the set, the set's drop
// equivalent (see spec's structural cancellation model).
func (ts *TaskSet) Close() {
	for id, node := range ts.tasks {
		node.cancel()
		delete(ts.tasks, id)
	}
}
