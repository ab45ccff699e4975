package dar

import (
	"context"
	"io"
)

// DataManagerClient manages dataset schemas and datasets.
type DataManagerClient struct {
	clientCore
}

func NewDataManagerClient(session *Session, opts ...ClientOption) *DataManagerClient {
	return &DataManagerClient{clientCore: newClientCore(session, opts)}
}

func (c *DataManagerClient) CreateDatasetSchema(ctx context.Context, schema map[string]any) (DatasetSchema, error) {
	c.logger.Info("creating dataset schema")
	var created DatasetSchema
	if err := c.postJSON(ctx, datasetSchemasPath(), schema, &created); err != nil {
		return nil, err
	}
	c.logger.Info("created dataset schema", "dataset_schema_id", created.ID())
	return created, nil
}

func (c *DataManagerClient) ReadDatasetSchemaCollection(ctx context.Context) (*DatasetSchemaCollection, error) {
	var coll DatasetSchemaCollection
	if err := c.getJSON(ctx, datasetSchemasPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *DataManagerClient) ReadDatasetSchemaByID(ctx context.Context, id string) (DatasetSchema, error) {
	var schema DatasetSchema
	if err := c.getJSON(ctx, datasetSchemaPath(id), &schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func (c *DataManagerClient) DeleteDatasetSchemaByID(ctx context.Context, id string) error {
	c.logger.Info("deleting dataset schema", "dataset_schema_id", id)
	_, err := c.session.Delete(ctx, datasetSchemaPath(id))
	return err
}

// CreateDataset creates an empty dataset bound to a schema.
func (c *DataManagerClient) CreateDataset(ctx context.Context, name, datasetSchemaID string) (*Dataset, error) {
	payload := map[string]string{"name": name, "datasetSchemaId": datasetSchemaID}
	var ds Dataset
	if err := c.postJSON(ctx, datasetsPath(), payload, &ds); err != nil {
		return nil, err
	}
	c.logger.Info("created dataset", "dataset_id", ds.ID, "name", name)
	return &ds, nil
}

func (c *DataManagerClient) ReadDatasetCollection(ctx context.Context) (*DatasetCollection, error) {
	var coll DatasetCollection
	if err := c.getJSON(ctx, datasetsPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *DataManagerClient) ReadDatasetByID(ctx context.Context, id string) (*Dataset, error) {
	var ds Dataset
	if err := c.getJSON(ctx, datasetPath(id), &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (c *DataManagerClient) DeleteDatasetByID(ctx context.Context, id string) error {
	c.logger.Info("deleting dataset", "dataset_id", id)
	_, err := c.session.Delete(ctx, datasetPath(id))
	return err
}

// UploadDataToDataset streams CSV data (optionally gzipped) into a dataset.
// Validation starts on the server once the upload completes.
func (c *DataManagerClient) UploadDataToDataset(ctx context.Context, id string, data io.Reader) (*Dataset, error) {
	c.logger.Info("uploading data", "dataset_id", id)
	resp, err := c.session.PostData(ctx, datasetDataPath(id), data)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := resp.JSON(&ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// IsDatasetValidationFinished reports whether validation of ds has ended.
// NO_DATA and UPLOADING are rejected with an *InvalidStateError: nothing
// will ever be validated without a finished upload.
func IsDatasetValidationFinished(ds *Dataset) (bool, error) {
	switch ds.Status {
	case DatasetStatusNoData, DatasetStatusUploading:
		return false, &InvalidStateError{Kind: KindDataset, ID: ds.ID, Status: string(ds.Status)}
	case DatasetStatusValidating:
		return false, nil
	}
	return true, nil
}

// IsDatasetValidationFailed reports whether ds ended in a failed state.
func IsDatasetValidationFailed(ds *Dataset) bool {
	switch ds.Status {
	case DatasetStatusInvalidData, DatasetStatusValidationFailed, DatasetStatusProgramError:
		return true
	}
	return false
}

// WaitForDatasetValidation polls the dataset until validation has finished.
//
// It fails with *InvalidStateError if no upload has completed, with
// *FailedError if validation failed and with *TimeoutError once the budget
// is spent.
func (c *DataManagerClient) WaitForDatasetValidation(ctx context.Context, id string, opts ...WaitOption) (*Dataset, error) {
	return waitFor(ctx, &c.clientCore, lifecycle[*Dataset]{
		kind:       KindDataset,
		id:         id,
		op:         OpWaitDataset,
		fetch:      func(ctx context.Context) (*Dataset, error) { return c.ReadDatasetByID(ctx, id) },
		isFinished: IsDatasetValidationFinished,
		isFailed:   IsDatasetValidationFailed,
		status: func(ds *Dataset) (string, string) {
			return string(ds.Status), ds.ValidationMessage
		},
	}, opts)
}

// UploadDataAndValidate uploads data and waits for validation to finish.
func (c *DataManagerClient) UploadDataAndValidate(ctx context.Context, id string, data io.Reader, opts ...WaitOption) (*Dataset, error) {
	if _, err := c.UploadDataToDataset(ctx, id, data); err != nil {
		return nil, err
	}
	return c.WaitForDatasetValidation(ctx, id, opts...)
}
