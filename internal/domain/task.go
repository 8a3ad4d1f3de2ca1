package domain

import "fmt"

// Task is a queued unit of work. Seq is assigned at queue-build time and
// never reused; Attempts counts producer invocations so far.
type Task struct {
	Seq      int
	Entry    *CatalogEntry
	Attempts int
	State    TaskState
}

// NewTask wraps a catalog entry into a pending task with the given sequence number.
func NewTask(seq int, entry *CatalogEntry) *Task {
	return &Task{Seq: seq, Entry: entry, State: TaskPending}
}

// Transition is the pure task state transition function.
// Pending -> InFlight on dispatch; InFlight resolves to Success, Fatal, or
// back to Pending when a transient failure still has attempts left.
func Transition(state TaskState, outcome OutcomeKind, attempts, maxAttempts int) (TaskState, error) {
	switch state {
	case TaskInFlight:
		switch outcome {
		case OutcomeSuccess:
			return TaskSuccess, nil
		case OutcomeFatal:
			return TaskFatal, nil
		case OutcomeTransient:
			if attempts >= maxAttempts {
				return TaskFatal, nil
			}
			return TaskPending, nil
		}
		return state, fmt.Errorf("unknown outcome %q", outcome)
	case TaskPending, TaskSuccess, TaskFatal:
		return state, fmt.Errorf("no outcome transition from state %q", state)
	}
	return state, fmt.Errorf("unknown state %q", state)
}

// Dispatch marks a pending task in-flight and counts the attempt.
func (t *Task) Dispatch() error {
	if t.State != TaskPending {
		return fmt.Errorf("dispatch task %d: state is %q, not pending", t.Seq, t.State)
	}
	t.State = TaskInFlight
	t.Attempts++
	return nil
}

// Resolve applies the attempt outcome to the task state.
func (t *Task) Resolve(outcome OutcomeKind, maxAttempts int) error {
	next, err := Transition(t.State, outcome, t.Attempts, maxAttempts)
	if err != nil {
		return fmt.Errorf("resolve task %d: %w", t.Seq, err)
	}
	t.State = next
	return nil
}
