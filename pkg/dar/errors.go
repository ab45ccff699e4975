package dar

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrHTTPSRequired = errors.New("URL must use https scheme. Unencrypted connections are not supported")

	ErrPollingTimeout           = errors.New("operation did not finish in time")
	ErrDatasetValidationTimeout = errors.New("dataset validation timeout")
	ErrTrainingJobTimeout       = errors.New("training job timeout")
	ErrDeploymentTimeout        = errors.New("deployment timeout")

	ErrDatasetValidationFailed = errors.New("dataset validation failed")
	ErrTrainingJobFailed       = errors.New("training job failed")
	ErrDeploymentFailed        = errors.New("deployment failed")

	ErrInvalidState        = errors.New("resource in unexpected state")
	ErrDatasetInvalidState = errors.New("dataset in unexpected state")

	ErrInvalidWorkerCount      = errors.New("invalid worker count")
	ErrCreateTrainingJobFailed = errors.New("create training job failed")
	ErrJobNotFound             = errors.New("job not found")
	ErrModelAlreadyExists      = errors.New("model already exists")
)

// ResourceKind names a server-side resource with an asynchronous lifecycle.
type ResourceKind string

const (
	KindDataset    ResourceKind = "dataset"
	KindJob        ResourceKind = "job"
	KindDeployment ResourceKind = "deployment"
)

// TimeoutError reports that waiting on a resource exceeded its budget.
// The resource may still reach a terminal state later.
type TimeoutError struct {
	Kind    ResourceKind
	ID      string
	Timeout time.Duration
	// Cause is the *polling.TimeoutError that triggered this error.
	Cause error
}

func (e *TimeoutError) Error() string {
	switch e.Kind {
	case KindDataset:
		return fmt.Sprintf("dataset validation for ID '%s' did not finish in %s", e.ID, e.Timeout)
	case KindJob:
		return fmt.Sprintf("training job '%s' did not finish within %s", e.ID, e.Timeout)
	case KindDeployment:
		return fmt.Sprintf("deployment '%s' did not succeed within %s", e.ID, e.Timeout)
	}
	return fmt.Sprintf("%s '%s' did not finish within %s", e.Kind, e.ID, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

func (e *TimeoutError) Is(target error) bool {
	switch target {
	case ErrPollingTimeout:
		return true
	case ErrDatasetValidationTimeout:
		return e.Kind == KindDataset
	case ErrTrainingJobTimeout:
		return e.Kind == KindJob
	case ErrDeploymentTimeout:
		return e.Kind == KindDeployment
	}
	return false
}

// FailedError reports that a resource reached a terminal, unsuccessful state.
type FailedError struct {
	Kind    ResourceKind
	ID      string
	Status  string
	Message string
}

func (e *FailedError) Error() string {
	switch e.Kind {
	case KindDataset:
		return fmt.Sprintf("validation for dataset '%s' failed with status '%s' and validation message: '%s'",
			e.ID, e.Status, e.Message)
	case KindJob:
		msg := fmt.Sprintf("job '%s' has status: '%s'", e.ID, e.Status)
		if e.Message != "" {
			msg += fmt.Sprintf(" and message: '%s'", e.Message)
		}
		return msg
	}
	msg := fmt.Sprintf("%s '%s' has status: %s", e.Kind, e.ID, e.Status)
	if e.Message != "" {
		msg += fmt.Sprintf(" (%s)", e.Message)
	}
	return msg
}

func (e *FailedError) Is(target error) bool {
	switch target {
	case ErrDatasetValidationFailed:
		return e.Kind == KindDataset
	case ErrTrainingJobFailed:
		return e.Kind == KindJob
	case ErrDeploymentFailed:
		return e.Kind == KindDeployment
	}
	return false
}

// InvalidStateError reports an attempt to wait on a resource that cannot be
// polled meaningfully yet.
type InvalidStateError struct {
	Kind   ResourceKind
	ID     string
	Status string
}

func (e *InvalidStateError) Error() string {
	if e.Kind == KindDataset {
		return fmt.Sprintf("cannot wait for dataset '%s' in status '%s': upload must finish first", e.ID, e.Status)
	}
	return fmt.Sprintf("cannot wait for %s '%s' in status '%s'", e.Kind, e.ID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState || (target == ErrDatasetInvalidState && e.Kind == KindDataset)
}

// InvalidWorkerCountError rejects a bulk inference worker count.
// WorkerCount is nil when no value was supplied.
type InvalidWorkerCountError struct {
	WorkerCount *int
}

func (e *InvalidWorkerCountError) Error() string {
	switch {
	case e.WorkerCount == nil:
		return "worker count must be set"
	case *e.WorkerCount > MaxWorkerCount:
		return fmt.Sprintf("worker count %d too high: at most %d workers allowed", *e.WorkerCount, MaxWorkerCount)
	default:
		return fmt.Sprintf("worker count must be greater than 0, got %d", *e.WorkerCount)
	}
}

func (e *InvalidWorkerCountError) Is(target error) bool { return target == ErrInvalidWorkerCount }

// ModelAlreadyExistsError is returned by ModelCreator when the target model
// name is taken.
type ModelAlreadyExistsError struct {
	ModelName string
}

func (e *ModelAlreadyExistsError) Error() string {
	return fmt.Sprintf("model '%s' already exists: delete the model first or choose a different name", e.ModelName)
}

func (e *ModelAlreadyExistsError) Is(target error) bool { return target == ErrModelAlreadyExists }

// HTTPError is returned for every response with a status code above 299.
// It keeps the diagnostic headers the service sends along.
type HTTPError struct {
	URL           string
	Method        string
	StatusCode    int
	Reason        string
	Body          string
	CorrelationID string
	VCAPRequestID string
	Server        string
	CFRouterError string
	Timestamp     time.Time
}

func newHTTPError(method, url string, resp *Response) *HTTPError {
	return &HTTPError{
		URL:           url,
		Method:        method,
		StatusCode:    resp.StatusCode,
		Reason:        http.StatusText(resp.StatusCode),
		Body:          resp.prettyBody(),
		CorrelationID: resp.Header.Get("X-Correlation-Id"),
		VCAPRequestID: resp.Header.Get("X-Vcap-Request-Id"),
		Server:        resp.Header.Get("Server"),
		CFRouterError: resp.Header.Get("X-Cf-Routererror"),
		Timestamp:     time.Now().UTC(),
	}
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
	if e.CorrelationID != "" {
		msg += fmt.Sprintf(" (correlation id %s)", e.CorrelationID)
	}
	return msg
}

// DebugMessage renders request and response details, one per line.
func (e *HTTPError) DebugMessage() string {
	fields := [][2]string{
		{"URL", e.URL},
		{"Method", e.Method},
		{"Status Code", fmt.Sprint(e.StatusCode)},
		{"Status Reason", e.Reason},
		{"Response Body", e.Body},
		{"Correlation ID", e.CorrelationID},
		{"VCAP Request ID", e.VCAPRequestID},
		{"CF Router Error", e.CFRouterError},
		{"Server Header", e.Server},
		{"Exception Timestamp", e.Timestamp.Format(time.RFC3339Nano)},
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: '%s'\n", f[0], f[1])
	}
	return b.String()
}

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// errorName returns the bare type name of err, e.g. "HTTPError".
// Anonymous errors from the errors and fmt packages are named "Error".
func errorName(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return "HTTPError"
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "errorString", "wrapError", "wrapErrors", "joinError":
		return "Error"
	}
	return name
}
