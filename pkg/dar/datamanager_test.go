package dar_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibus/dar-go/pkg/dar"
	"github.com/aibus/dar-go/pkg/polling"
)

func TestIsDatasetValidationFinished(t *testing.T) {
	tests := []struct {
		status       dar.DatasetStatus
		wantFinished bool
		wantInvalid  bool
		wantFailed   bool
	}{
		{status: dar.DatasetStatusNoData, wantInvalid: true},
		{status: dar.DatasetStatusUploading, wantInvalid: true},
		{status: dar.DatasetStatusValidating},
		{status: dar.DatasetStatusSucceeded, wantFinished: true},
		{status: dar.DatasetStatusInvalidData, wantFinished: true, wantFailed: true},
		{status: dar.DatasetStatusValidationFailed, wantFinished: true, wantFailed: true},
		{status: dar.DatasetStatusProgramError, wantFinished: true, wantFailed: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ds := &dar.Dataset{ID: "ds", Status: tt.status}

			finished, err := dar.IsDatasetValidationFinished(ds)
			if tt.wantInvalid {
				assert.ErrorIs(t, err, dar.ErrDatasetInvalidState)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantFinished, finished)
			assert.Equal(t, tt.wantFailed, dar.IsDatasetValidationFailed(ds))
		})
	}
}

func TestWaitForDatasetValidation_SleepsBetweenPolls(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.AddDataset(dar.Dataset{ID: "ds-1"},
		dar.DatasetStatusValidating, dar.DatasetStatusValidating, dar.DatasetStatusSucceeded)
	clock, withClock := fakeClock()
	client := dar.NewDataManagerClient(session, withClock)

	ds, err := client.WaitForDatasetValidation(context.Background(), "ds-1")

	require.NoError(t, err)
	assert.Equal(t, dar.DatasetStatusSucceeded, ds.Status)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, clock.Sleeps())
	assert.Equal(t, 3, fake.Requests(http.MethodGet, "/data-manager/api/v3/datasets/ds-1"))
}

func TestWaitForDatasetValidation_RejectsDatasetWithoutUpload(t *testing.T) {
	for _, status := range []dar.DatasetStatus{dar.DatasetStatusNoData, dar.DatasetStatusUploading} {
		t.Run(string(status), func(t *testing.T) {
			fake, session := newFakeSession(t)
			fake.AddDataset(dar.Dataset{ID: "ds-1", Status: status})
			clock, withClock := fakeClock()
			client := dar.NewDataManagerClient(session, withClock)

			_, err := client.WaitForDatasetValidation(context.Background(), "ds-1")

			var stateErr *dar.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, string(status), stateErr.Status)
			assert.ErrorIs(t, err, dar.ErrInvalidState)
			assert.Empty(t, clock.Sleeps())
			assert.Equal(t, 1, fake.Requests(http.MethodGet, "/data-manager/api/v3/datasets/ds-1"))
		})
	}
}

func TestWaitForDatasetValidation_Failed(t *testing.T) {
	for _, status := range []dar.DatasetStatus{
		dar.DatasetStatusInvalidData, dar.DatasetStatusValidationFailed, dar.DatasetStatusProgramError,
	} {
		t.Run(string(status), func(t *testing.T) {
			fake, session := newFakeSession(t)
			fake.AddDataset(dar.Dataset{ID: "ds-1"}, dar.DatasetStatusValidating, status)
			_, withClock := fakeClock()
			client := dar.NewDataManagerClient(session, withClock)

			ds, err := client.WaitForDatasetValidation(context.Background(), "ds-1")

			assert.Nil(t, ds)
			assert.ErrorIs(t, err, dar.ErrDatasetValidationFailed)
			assert.False(t, errors.Is(err, dar.ErrTrainingJobFailed))
			var failed *dar.FailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, string(status), failed.Status)
			assert.Equal(t, "dataset contains invalid rows", failed.Message)
			assert.Contains(t, err.Error(), "validation message: 'dataset contains invalid rows'")
		})
	}
}

func TestWaitForDatasetValidation_Timeout(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.AddDataset(dar.Dataset{ID: "ds-1"}, dar.DatasetStatusValidating)
	clock, withClock := fakeClock()
	client := dar.NewDataManagerClient(session, withClock)

	_, err := client.WaitForDatasetValidation(context.Background(), "ds-1",
		dar.WithTimeout(2*time.Minute), dar.WithInterval(time.Minute))

	assert.ErrorIs(t, err, dar.ErrDatasetValidationTimeout)
	assert.ErrorIs(t, err, dar.ErrPollingTimeout)
	assert.ErrorIs(t, err, polling.ErrTimeout)
	assert.False(t, errors.Is(err, dar.ErrDeploymentTimeout))
	var timeoutErr *dar.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 2*time.Minute, timeoutErr.Timeout)
	assert.EqualError(t, err, "dataset validation for ID 'ds-1' did not finish in 2m0s")
	assert.Equal(t, 2*time.Minute, clock.Slept())
}

func TestWaitForDatasetValidation_ConfiguredBudget(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.AddDataset(dar.Dataset{ID: "ds-1"}, dar.DatasetStatusValidating, dar.DatasetStatusSucceeded)
	clock, withClock := fakeClock()
	client := dar.NewDataManagerClient(session, withClock,
		dar.WithWaitConfig(dar.KindDataset, dar.WaitConfig{Interval: 5 * time.Second, Timeout: time.Minute}))

	_, err := client.WaitForDatasetValidation(context.Background(), "ds-1")

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, clock.Sleeps())
}

func TestWaitForDatasetValidation_ReportsUpdates(t *testing.T) {
	rec := &timingRecorder{}
	fake, session := newFakeSession(t, dar.WithMetrics(rec))
	fake.AddDataset(dar.Dataset{ID: "ds-1"},
		dar.DatasetStatusValidating, dar.DatasetStatusValidating, dar.DatasetStatusSucceeded)
	_, withClock := fakeClock()
	client := dar.NewDataManagerClient(session, withClock)

	var seen []dar.DatasetStatus
	_, err := client.WaitForDatasetValidation(context.Background(), "ds-1",
		dar.OnUpdate(func(ds *dar.Dataset) { seen = append(seen, ds.Status) }),
		dar.OnUpdate(func(*dar.Job) { t.Error("job observer must not see datasets") }),
	)

	require.NoError(t, err)
	assert.Equal(t, []dar.DatasetStatus{
		dar.DatasetStatusValidating, dar.DatasetStatusValidating, dar.DatasetStatusSucceeded,
	}, seen)
	assert.Equal(t, 1, rec.count(dar.OpWaitDataset))
	assert.Equal(t, 3, rec.count(dar.OpHTTPGet))
}

func TestDataManager_SchemaAndDatasetLifecycle(t *testing.T) {
	fake, session := newFakeSession(t)
	clock, withClock := fakeClock()
	client := dar.NewDataManagerClient(session, withClock)
	ctx := context.Background()

	schema, err := client.CreateDatasetSchema(ctx, map[string]any{
		"features": []map[string]string{{"label": "manufacturer", "type": "CATEGORY"}},
		"labels":   []map[string]string{{"label": "category", "type": "CATEGORY"}},
		"name":     "test",
	})
	require.NoError(t, err)
	require.NotEmpty(t, schema.ID())

	read, err := client.ReadDatasetSchemaByID(ctx, schema.ID())
	require.NoError(t, err)
	assert.Equal(t, "test", read["name"])

	schemas, err := client.ReadDatasetSchemaCollection(ctx)
	require.NoError(t, err)
	assert.Len(t, schemas.DatasetSchemas, 1)

	ds, err := client.CreateDataset(ctx, "my-dataset", schema.ID())
	require.NoError(t, err)
	assert.Equal(t, dar.DatasetStatusNoData, ds.Status)
	assert.Equal(t, schema.ID(), ds.DatasetSchemaID)

	validated, err := client.UploadDataAndValidate(ctx, ds.ID, strings.NewReader("manufacturer,category\nACME,ANVIL\n"))
	require.NoError(t, err)
	assert.Equal(t, dar.DatasetStatusSucceeded, validated.Status)
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, fake.Requests(http.MethodPost, "/data-manager/api/v3/datasets/"+ds.ID+"/data"))

	datasets, err := client.ReadDatasetCollection(ctx)
	require.NoError(t, err)
	require.Len(t, datasets.Datasets, 1)
	assert.Equal(t, "my-dataset", datasets.Datasets[0].Name)

	require.NoError(t, client.DeleteDatasetByID(ctx, ds.ID))
	require.NoError(t, client.DeleteDatasetSchemaByID(ctx, schema.ID()))

	_, err = client.ReadDatasetByID(ctx, ds.ID)
	assert.True(t, dar.IsNotFound(err))
	assert.True(t, dar.IsNotFound(client.DeleteDatasetSchemaByID(ctx, schema.ID())))
}

func TestUploadDataToDataset_IsNotRetried(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.AddDataset(dar.Dataset{ID: "ds-1", Status: dar.DatasetStatusNoData})
	fake.FailRequests(http.MethodPost, "/data-manager/api/v3/datasets/ds-1/data", http.StatusServiceUnavailable, 1)
	client := dar.NewDataManagerClient(session)

	_, err := client.UploadDataToDataset(context.Background(), "ds-1", strings.NewReader("a,b\n"))

	var httpErr *dar.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, 1, fake.Requests(http.MethodPost, "/data-manager/api/v3/datasets/ds-1/data"))
}
