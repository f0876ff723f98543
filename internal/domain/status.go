package domain

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// transitions holds the allowed moves out of each state.
// failed and completed are terminal; only deletion removes them.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusActive, JobStatusFailed},
	JobStatusActive:  {JobStatusPaused, JobStatusCompleted, JobStatusFailed},
	JobStatusPaused:  {JobStatusActive, JobStatusCompleted, JobStatusFailed},
}

// CanTransitionTo reports whether moving from s to next is a legal state change.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor returns every state that may legally move to next.
func SourcesFor(next JobStatus) []JobStatus {
	var from []JobStatus
	for _, s := range []JobStatus{JobStatusPending, JobStatusActive, JobStatusPaused} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AcceptsEvents reports whether webhook deliveries should be queued for a job in this state.
// pending is included because the provider may deliver before the setup task records activation.
func (s JobStatus) AcceptsEvents() bool {
	return s == JobStatusPending || s == JobStatusActive
}
