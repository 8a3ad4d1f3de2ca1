package domain

// TaskState represents the lifecycle state of a queued task
type TaskState string

const (
	TaskPending  TaskState = "pending"
	TaskInFlight TaskState = "in_flight"
	TaskSuccess  TaskState = "success"
	TaskFatal    TaskState = "fatal"
)

// Terminal reports whether no further transitions are possible
func (s TaskState) Terminal() bool {
	return s == TaskSuccess || s == TaskFatal
}

// OutcomeKind classifies the result of one producer attempt
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeTransient OutcomeKind = "transient"
	OutcomeFatal     OutcomeKind = "fatal"
)

// RunStatus represents the overall state of a run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// StopReason records why a run ended before the queue was drained
type StopReason string

const (
	StopNone              StopReason = ""
	StopInterrupted       StopReason = "interrupted"
	StopTaskBudget        StopReason = "task_budget"
	StopConsecutiveErrors StopReason = "consecutive_errors"
	StopErrorRate         StopReason = "error_rate"
)
