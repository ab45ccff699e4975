package dar_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibus/dar-go/internal/darfake"
	"github.com/aibus/dar-go/pkg/dar"
)

var testSchema = map[string]any{
	"features": []map[string]string{{"label": "manufacturer", "type": "CATEGORY"}},
	"labels":   []map[string]string{{"label": "category", "type": "CATEGORY"}},
	"name":     "products",
}

func TestModelCreator_Create(t *testing.T) {
	fake, session := newFakeSession(t)
	clock, withClock := fakeClock()
	creator := dar.NewModelCreator(session, withClock)

	var jobUpdates int
	model, err := creator.Create(context.Background(), strings.NewReader("manufacturer,category\nACME,ANVIL\n"),
		darfake.TemplateID, testSchema, "my-model",
		dar.OnUpdate(func(*dar.Job) { jobUpdates++ }))

	require.NoError(t, err)
	assert.Equal(t, "my-model", model.Name)
	assert.Equal(t, darfake.TemplateID, model.ModelTemplateID)
	assert.Equal(t, 2, jobUpdates)
	// One dataset validation poll interval, then one job poll interval.
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, fake.Requests(http.MethodPost, "/data-manager/api/v3/datasetSchemas"))
	assert.Equal(t, 1, fake.Requests(http.MethodPost, "/model-manager/api/v3/jobs"))

	datasets, err := creator.Data.ReadDatasetCollection(context.Background())
	require.NoError(t, err)
	require.Len(t, datasets.Datasets, 1)
	assert.True(t, strings.HasPrefix(datasets.Datasets[0].Name, "my-model-"))
}

func TestModelCreator_RejectsExistingModel(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.AddModel(dar.Model{Name: "my-model"})
	creator := dar.NewModelCreator(session)

	_, err := creator.Create(context.Background(), strings.NewReader(""), darfake.TemplateID, testSchema, "my-model")

	assert.ErrorIs(t, err, dar.ErrModelAlreadyExists)
	assert.EqualError(t, err,
		"model 'my-model' already exists: delete the model first or choose a different name")
	assert.Zero(t, fake.Requests(http.MethodPost, "/data-manager/api/v3/datasetSchemas"))
}

func TestModelCreator_StopsOnFailedValidation(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.SetDatasetScript(dar.DatasetStatusValidating, dar.DatasetStatusInvalidData)
	_, withClock := fakeClock()
	creator := dar.NewModelCreator(session, withClock)

	_, err := creator.Create(context.Background(), strings.NewReader("broken"), darfake.TemplateID, testSchema, "my-model")

	assert.ErrorIs(t, err, dar.ErrDatasetValidationFailed)
	assert.Zero(t, fake.Requests(http.MethodPost, "/model-manager/api/v3/jobs"))
}

func TestModelCreator_PropagatesServerErrors(t *testing.T) {
	fake, session := newFakeSession(t)
	fake.FailRequests(http.MethodGet, "/model-manager/api/v3/models/my-model", http.StatusForbidden, 1)
	creator := dar.NewModelCreator(session)

	_, err := creator.Create(context.Background(), strings.NewReader(""), darfake.TemplateID, testSchema, "my-model")

	var httpErr *dar.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestFormatDatasetName(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		wantStart string
	}{
		{name: "short", modelName: "my-model", wantStart: "my-model-"},
		{name: "empty", modelName: "", wantStart: "-"},
		{name: "long", modelName: strings.Repeat("m", 300), wantStart: strings.Repeat("m", 218) + "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dar.FormatDatasetName(tt.modelName)

			assert.LessOrEqual(t, len(got), 255)
			assert.True(t, strings.HasPrefix(got, tt.wantStart), got)
			_, err := uuid.Parse(got[len(got)-36:])
			assert.NoError(t, err)
		})
	}

	assert.NotEqual(t, dar.FormatDatasetName("m"), dar.FormatDatasetName("m"))
}
