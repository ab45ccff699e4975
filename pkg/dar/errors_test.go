package dar_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aibus/dar-go/pkg/dar"
)

func TestTimeoutError_MatchesItsKindOnly(t *testing.T) {
	sentinels := map[dar.ResourceKind]error{
		dar.KindDataset:    dar.ErrDatasetValidationTimeout,
		dar.KindJob:        dar.ErrTrainingJobTimeout,
		dar.KindDeployment: dar.ErrDeploymentTimeout,
	}

	for kind := range sentinels {
		t.Run(string(kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &dar.TimeoutError{Kind: kind, ID: "x", Timeout: time.Minute})

			assert.ErrorIs(t, err, dar.ErrPollingTimeout)
			for other, sentinel := range sentinels {
				assert.Equal(t, other == kind, errors.Is(err, sentinel), "sentinel for %s", other)
			}
		})
	}
}

func TestFailedError_Messages(t *testing.T) {
	tests := []struct {
		err  *dar.FailedError
		want string
	}{
		{
			err:  &dar.FailedError{Kind: dar.KindDataset, ID: "ds", Status: "INVALID_DATA", Message: "bad rows"},
			want: "validation for dataset 'ds' failed with status 'INVALID_DATA' and validation message: 'bad rows'",
		},
		{
			err:  &dar.FailedError{Kind: dar.KindJob, ID: "job", Status: "FAILED"},
			want: "job 'job' has status: 'FAILED'",
		},
		{
			err:  &dar.FailedError{Kind: dar.KindDeployment, ID: "dep", Status: "STOPPED"},
			want: "deployment 'dep' has status: STOPPED",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.want)
		})
	}
}

func TestInvalidStateError(t *testing.T) {
	err := &dar.InvalidStateError{Kind: dar.KindDataset, ID: "ds", Status: "NO_DATA"}

	assert.ErrorIs(t, err, dar.ErrInvalidState)
	assert.ErrorIs(t, err, dar.ErrDatasetInvalidState)
	assert.EqualError(t, err, "cannot wait for dataset 'ds' in status 'NO_DATA': upload must finish first")

	other := &dar.InvalidStateError{Kind: dar.KindJob, ID: "job", Status: "UNKNOWN"}
	assert.ErrorIs(t, other, dar.ErrInvalidState)
	assert.NotErrorIs(t, other, dar.ErrDatasetInvalidState)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, dar.IsNotFound(fmt.Errorf("read: %w", &dar.HTTPError{StatusCode: http.StatusNotFound})))
	assert.False(t, dar.IsNotFound(&dar.HTTPError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, dar.IsNotFound(errors.New("404")))
	assert.False(t, dar.IsNotFound(nil))
}
