package scheduler

import "fmt"

// PersistenceError reports a job store failure for a single job. The
// reconciliation scan logs it and moves on.
type PersistenceError struct {
	JobID string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// JobExecutionError reports a reminder that failed at fire time. Failed
// reminders are not retried.
type JobExecutionError struct {
	JobID string
	Err   error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("reminder job %s failed: %v", e.JobID, e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }
