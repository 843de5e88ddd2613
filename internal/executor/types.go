package executor

// Result is the executor's view of an asynchronous request, either embedded
// in a webhook payload or fetched from the queue's result endpoint. Exactly
// one of TensorPath/ImageURL is populated depending on the job kind.
type Result struct {
	Status     string
	TensorPath string
	ImageURL   string
	ErrMessage string
}

// Recognized callback status values. Anything else is treated as an
// intermediate progress update and ignored.
const (
	StatusOK        = "OK"
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"
)

// Succeeded reports whether the status marks a completed request.
func Succeeded(status string) bool {
	return status == StatusOK || status == StatusCompleted
}

// Failed reports whether the status marks a failed request.
func Failed(status string) bool {
	return status == StatusError
}
