package dar

import (
	"context"
	"fmt"
	"time"

	"github.com/aibus/dar-go/pkg/batch"
)

const (
	// LimitObjectsPerCall is the most objects the inference endpoint accepts
	// in a single request.
	LimitObjectsPerCall = 50
	// DefaultTopN is the number of labels predicted per object.
	DefaultTopN = 1
	// MaxWorkerCount bounds bulk inference concurrency.
	MaxWorkerCount = 4
)

// BulkOptions controls DoBulkInference.
type BulkOptions struct {
	TopN int
	// Retry enables retries of the inference requests. A retried request
	// may be billed twice.
	Retry bool
	// WorkerCount must point to a value between 1 and MaxWorkerCount.
	WorkerCount *int
	// ChunkSize defaults to LimitObjectsPerCall when zero.
	ChunkSize int
}

// DefaultBulkOptions returns TopN 1 with retries on and MaxWorkerCount
// workers.
func DefaultBulkOptions() BulkOptions {
	return BulkOptions{
		TopN:        DefaultTopN,
		Retry:       true,
		WorkerCount: Workers(MaxWorkerCount),
		ChunkSize:   LimitObjectsPerCall,
	}
}

// Workers returns a pointer to n for use in BulkOptions.
func Workers(n int) *int { return &n }

// ValidateWorkerCount checks that n is set and within [1, MaxWorkerCount].
func ValidateWorkerCount(n *int) error {
	if n == nil || *n <= 0 || *n > MaxWorkerCount {
		return &InvalidWorkerCountError{WorkerCount: n}
	}
	return nil
}

// InferenceClient calls the inference endpoint of deployed models.
type InferenceClient struct {
	clientCore
}

func NewInferenceClient(session *Session, opts ...ClientOption) *InferenceClient {
	return &InferenceClient{clientCore: newClientCore(session, opts)}
}

type inferenceRequest struct {
	TopN    int               `json:"topN"`
	Objects []InferenceObject `json:"objects"`
}

// CreateInferenceRequest classifies up to LimitObjectsPerCall objects with
// the deployed model modelName.
func (c *InferenceClient) CreateInferenceRequest(ctx context.Context, modelName string, objects []InferenceObject, topN int, retry bool) (*InferenceResponse, error) {
	c.logger.Debug("submitting inference request", "model_name", modelName, "objects", len(objects), "top_n", topN)
	resp, err := c.session.Post(ctx, inferencePath(modelName), inferenceRequest{TopN: topN, Objects: objects}, retry)
	if err != nil {
		return nil, err
	}
	return c.decodeInference(resp)
}

// CreateInferenceRequestWithURL is CreateInferenceRequest against a fully
// qualified inference URL.
func (c *InferenceClient) CreateInferenceRequestWithURL(ctx context.Context, url string, objects []InferenceObject, topN int, retry bool) (*InferenceResponse, error) {
	c.logger.Debug("submitting inference request", "url", url, "objects", len(objects), "top_n", topN)
	resp, err := c.session.PostURL(ctx, url, inferenceRequest{TopN: topN, Objects: objects}, retry)
	if err != nil {
		return nil, err
	}
	return c.decodeInference(resp)
}

func (c *InferenceClient) decodeInference(resp *Response) (*InferenceResponse, error) {
	var ir InferenceResponse
	if err := resp.JSON(&ir); err != nil {
		return nil, err
	}
	c.logger.Debug("inference response", "id", ir.ID)
	return &ir, nil
}

// DoBulkInference classifies any number of objects by splitting them into
// chunks and sending up to opts.WorkerCount requests in parallel.
//
// The result has exactly one prediction per input object, in input order.
// A chunk whose request fails yields one prediction per object carrying
// only the object ID and the error; other chunks are unaffected. The only
// error returned is an *InvalidWorkerCountError for a bad opts.WorkerCount.
func (c *InferenceClient) DoBulkInference(ctx context.Context, modelName string, objects []InferenceObject, opts BulkOptions) ([]Prediction, error) {
	if err := ValidateWorkerCount(opts.WorkerCount); err != nil {
		return nil, err
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = LimitObjectsPerCall
	}

	chunks, err := batch.Split(objects, chunkSize)
	if err != nil {
		return nil, err
	}

	results := batch.RunOrdered(ctx, chunks, *opts.WorkerCount,
		func(ctx context.Context, chunk []InferenceObject) ([]Prediction, error) {
			start := time.Now()
			defer func() { c.session.record(OpInferenceChunk, time.Since(start)) }()

			resp, err := c.CreateInferenceRequest(ctx, modelName, chunk, topN, opts.Retry)
			if err != nil {
				return nil, err
			}
			if len(resp.Predictions) != len(chunk) {
				return nil, fmt.Errorf("inference response %s has %d predictions for %d objects",
					resp.ID, len(resp.Predictions), len(chunk))
			}
			return resp.Predictions, nil
		})

	predictions := make([]Prediction, 0, len(objects))
	for i, r := range results {
		if r.Err != nil {
			c.logger.Warn("inference chunk failed, recording errors for its objects",
				"chunk", i, "objects", len(chunks[i]), "error", r.Err)
			predictions = append(predictions, failedPredictions(chunks[i], r.Err)...)
			continue
		}
		predictions = append(predictions, r.Value...)
	}
	return predictions, nil
}

func failedPredictions(chunk []InferenceObject, err error) []Prediction {
	msg := fmt.Sprintf("%s: %s", errorName(err), err)
	out := make([]Prediction, len(chunk))
	for i, obj := range chunk {
		out[i] = Prediction{ObjectID: obj.ObjectID, Error: msg}
	}
	return out
}
