package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibus/dar-go/internal/darfake"
	"github.com/aibus/dar-go/internal/metrics"
	"github.com/aibus/dar-go/pkg/dar"
)

func TestReadObjects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "array",
			input:   `[{"objectId": "a", "features": []}, {"objectId": "b", "features": []}]`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "document",
			input:   `{"topN": 1, "objects": [{"objectId": "c", "features": []}]}`,
			wantIDs: []string{"c"},
		},
		{
			name:    "invalid",
			input:   `objects`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects, err := readObjects(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, o := range objects {
				ids = append(ids, o.ObjectID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestProgressModel(t *testing.T) {
	m := newProgressModel()
	assert.Contains(t, m.renderContent(), "Waiting for training job")

	next, cmd := m.Update(jobUpdateMsg{job: &dar.Job{ID: "job-1", Status: dar.JobStatusRunning, Progress: 0.5}})
	assert.Nil(t, cmd)
	m = next.(progressModel)
	assert.Contains(t, m.renderContent(), "[RUNNING]")
	assert.Contains(t, m.renderContent(), "job-1")

	next, cmd = m.Update(jobDoneMsg{err: errors.New("training failed")})
	assert.NotNil(t, cmd)
	m = next.(progressModel)
	assert.True(t, m.done)
	assert.Equal(t, "job-1", m.job.ID)
	assert.Contains(t, m.renderContent(), "Job failed: training failed")

	next, _ = newProgressModel().Update(jobDoneMsg{job: &dar.Job{ID: "job-2", Status: dar.JobStatusSucceeded}})
	assert.Contains(t, next.(progressModel).renderContent(), "Training completed")
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, metrics.Snapshot{})
	assert.Contains(t, buf.String(), "No requests recorded")

	c := metrics.NewCollector()
	c.RecordTiming(dar.OpHTTPPost, 12*time.Millisecond)
	buf.Reset()
	printStats(&buf, c.Snapshot())
	assert.Contains(t, buf.String(), "OPERATION")
	assert.Contains(t, buf.String(), dar.OpHTTPPost)
}

func TestInferCommand_AgainstFake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.json")
	objects := make([]dar.InferenceObject, 120)
	for i := range objects {
		objects[i] = dar.InferenceObject{
			ObjectID: fmt.Sprintf("obj-%d", i),
			Features: []dar.Feature{{Name: "manufacturer", Value: "ACME"}},
		}
	}
	data, err := json.Marshal(objects)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--fake", "--env-file", filepath.Join(t.TempDir(), "none.env"), "infer", demoModel, path, "--workers", "2"})
	require.NoError(t, Execute())

	var predictions []dar.Prediction
	require.NoError(t, json.Unmarshal(out.Bytes(), &predictions))
	require.Len(t, predictions, 120)
	for i, p := range predictions {
		assert.Equal(t, fmt.Sprintf("obj-%d", i), p.ObjectID)
		assert.False(t, p.Failed())
	}
}

func TestTrainCommand_AgainstFake(t *testing.T) {
	if testing.Short() {
		t.Skip("polls in real time")
	}

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.json")
	dataPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{"name": "products", "features": [], "labels": []}`), 0o600))
	require.NoError(t, os.WriteFile(dataPath, []byte("manufacturer,category\nACME,ANVIL\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--fake", "--env-file", filepath.Join(dir, "none.env"),
		"train", "my-model", dataPath, "--template", darfake.TemplateID, "--schema", schemaPath})
	require.NoError(t, Execute())

	assert.Contains(t, out.String(), "RUNNING")
	assert.Contains(t, out.String(), "Model my-model trained by job")
}
