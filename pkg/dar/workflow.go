package dar

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// maxDatasetNameLength is the longest dataset name the service accepts.
const maxDatasetNameLength = 255

// ModelCreator trains a model from a CSV file in one call by orchestrating
// a DataManagerClient and a ModelManagerClient.
type ModelCreator struct {
	Data   *DataManagerClient
	Models *ModelManagerClient
	logger *slog.Logger
}

func NewModelCreator(session *Session, opts ...ClientOption) *ModelCreator {
	return &ModelCreator{
		Data:   NewDataManagerClient(session, opts...),
		Models: NewModelManagerClient(session, opts...),
		logger: session.Logger(),
	}
}

// Create trains modelName from data and returns the final model.
//
// It creates a dataset schema and a dataset, uploads data, waits for
// validation and then for the training job. jobOpts apply to the job wait.
// Nothing is cleaned up on failure: the schema and dataset created so far
// stay on the service.
func (m *ModelCreator) Create(ctx context.Context, data io.Reader, modelTemplateID string, schema map[string]any, modelName string, jobOpts ...WaitOption) (*Model, error) {
	m.logger.Info("checking if model exists", "model_name", modelName)
	_, err := m.Models.ReadModelByName(ctx, modelName)
	switch {
	case err == nil:
		return nil, &ModelAlreadyExistsError{ModelName: modelName}
	case !IsNotFound(err):
		return nil, err
	}

	created, err := m.Data.CreateDatasetSchema(ctx, schema)
	if err != nil {
		return nil, err
	}

	datasetName := FormatDatasetName(modelName)
	ds, err := m.Data.CreateDataset(ctx, datasetName, created.ID())
	if err != nil {
		return nil, err
	}

	if _, err := m.Data.UploadDataAndValidate(ctx, ds.ID, data); err != nil {
		return nil, err
	}
	m.logger.Info("data uploaded and validated", "dataset_id", ds.ID)

	job, err := m.Models.CreateJobAndWait(ctx, modelName, ds.ID, modelTemplateID, "", jobOpts...)
	if err != nil {
		return nil, err
	}
	m.logger.Info("training finished", "job_id", job.ID)

	return m.Models.ReadModelByName(ctx, modelName)
}

// FormatDatasetName derives a unique dataset name from a model name by
// appending a random UUID, truncating the model name so the result fits
// into 255 characters.
func FormatDatasetName(modelName string) string {
	suffix := "-" + uuid.NewString()
	if limit := maxDatasetNameLength - len(suffix); len(modelName) > limit {
		modelName = modelName[:limit]
	}
	return modelName + suffix
}
