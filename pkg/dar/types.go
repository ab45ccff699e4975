package dar

// DatasetStatus is the validation state of a dataset.
type DatasetStatus string

const (
	DatasetStatusNoData           DatasetStatus = "NO_DATA"
	DatasetStatusUploading        DatasetStatus = "UPLOADING"
	DatasetStatusValidating       DatasetStatus = "VALIDATING"
	DatasetStatusSucceeded        DatasetStatus = "SUCCEEDED"
	DatasetStatusInvalidData      DatasetStatus = "INVALID_DATA"
	DatasetStatusValidationFailed DatasetStatus = "VALIDATION_FAILED"
	DatasetStatusProgramError     DatasetStatus = "PROGRAM_ERROR"
)

// JobStatus is the state of a training job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// DeploymentStatus is the state of a model deployment.
type DeploymentStatus string

const (
	DeploymentStatusPending   DeploymentStatus = "PENDING"
	DeploymentStatusSucceeded DeploymentStatus = "SUCCEEDED"
	DeploymentStatusFailed    DeploymentStatus = "FAILED"
	DeploymentStatusStopped   DeploymentStatus = "STOPPED"
)

// DatasetSchema is kept as raw JSON since its shape is user defined.
type DatasetSchema map[string]any

// ID returns the schema's "id" field, or "" if absent.
func (s DatasetSchema) ID() string {
	id, _ := s["id"].(string)
	return id
}

type DatasetSchemaCollection struct {
	DatasetSchemas []DatasetSchema `json:"datasetSchemas"`
	Count          int             `json:"count,omitempty"`
}

type Dataset struct {
	ID                string        `json:"id"`
	Name              string        `json:"name,omitempty"`
	DatasetSchemaID   string        `json:"datasetSchemaId,omitempty"`
	Status            DatasetStatus `json:"status"`
	ValidationMessage string        `json:"validationMessage,omitempty"`
	CreatedAt         string        `json:"createdAt,omitempty"`
}

type DatasetCollection struct {
	Datasets []Dataset `json:"datasets"`
	Count    int       `json:"count,omitempty"`
}

type Job struct {
	ID                  string    `json:"id"`
	ModelName           string    `json:"modelName"`
	DatasetID           string    `json:"datasetId,omitempty"`
	ModelTemplateID     string    `json:"modelTemplateId,omitempty"`
	BusinessBlueprintID string    `json:"businessBlueprintId,omitempty"`
	Status              JobStatus `json:"status"`
	Progress            float64   `json:"progress,omitempty"`
	Message             string    `json:"message,omitempty"`
	StartedAt           string    `json:"startedAt,omitempty"`
	FinishedAt          string    `json:"finishedAt,omitempty"`
}

type JobCollection struct {
	Jobs  []Job `json:"jobs"`
	Count int   `json:"count,omitempty"`
}

type Model struct {
	Name             string         `json:"name"`
	JobID            string         `json:"jobId,omitempty"`
	ModelTemplateID  string         `json:"modelTemplateId,omitempty"`
	ValidationResult map[string]any `json:"validationResult,omitempty"`
	Deployments      []Deployment   `json:"deployments,omitempty"`
}

type ModelCollection struct {
	Models []Model `json:"models"`
	Count  int     `json:"count,omitempty"`
}

type Deployment struct {
	ID        string           `json:"id"`
	ModelName string           `json:"modelName"`
	Status    DeploymentStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
}

type DeploymentCollection struct {
	Deployments []Deployment `json:"deployments"`
	Count       int          `json:"count,omitempty"`
}

type ModelTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type ModelTemplateCollection struct {
	ModelTemplates []ModelTemplate `json:"modelTemplates"`
	Count          int             `json:"count,omitempty"`
}

type BusinessBlueprint struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type BusinessBlueprintCollection struct {
	BusinessBlueprints []BusinessBlueprint `json:"businessBlueprints"`
	Count              int                 `json:"count,omitempty"`
}

// Feature is a single named input value of an inference object.
type Feature struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InferenceObject is one item to classify.
type InferenceObject struct {
	ObjectID string    `json:"objectId,omitempty"`
	Features []Feature `json:"features"`
}

type LabelResult struct {
	Value       string  `json:"value"`
	Probability float64 `json:"probability"`
}

// Label is a predicted value for one target column.
type Label struct {
	Name        string        `json:"name"`
	Value       string        `json:"value,omitempty"`
	Probability float64       `json:"probability,omitempty"`
	Results     []LabelResult `json:"results,omitempty"`
}

// Prediction is the result for one inference object. Predictions produced
// for a failed chunk have nil Labels and a non-empty Error.
type Prediction struct {
	ObjectID string  `json:"objectId,omitempty"`
	Labels   []Label `json:"labels"`
	Error    string  `json:"_sdk_error,omitempty"`
}

// Failed reports whether the prediction stands in for a failed request.
func (p Prediction) Failed() bool { return p.Error != "" }

type InferenceResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	ProcessedTime string       `json:"processedTime"`
	Predictions   []Prediction `json:"predictions"`
}
