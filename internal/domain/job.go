package domain

// JobStatus enumerates the lifecycle states shared by training and
// image-generation jobs. Pending is the only non-terminal state; once a job
// reaches Generated or Failed it never transitions again.
type JobStatus string

const (
	JobPending   JobStatus = "Pending"
	JobGenerated JobStatus = "Generated"
	JobFailed    JobStatus = "Failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobGenerated || s == JobFailed
}
