package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aibus/dar-go/pkg/dar"
)

var (
	inferTopN      int
	inferWorkers   int
	inferChunkSize int
	inferNoRetry   bool
)

var inferCmd = &cobra.Command{
	Use:   "infer <model-name> <objects.json|->",
	Short: "Run bulk inference against a deployed model",
	Long: `Classify objects with a deployed model and print the predictions as JSON.

The input is a JSON array of objects, or a document with an "objects" array:
  [{"objectId": "1", "features": [{"name": "manufacturer", "value": "ACME"}]}]

Objects are sent in chunks of up to 50, several chunks in parallel. A chunk
that fails does not abort the run: its objects get a prediction with
"labels": null and an "_sdk_error" describing the failure.

Examples:
  darctl infer my-model objects.json
  cat objects.json | darctl infer my-model - --workers 2 --top-n 3`,
	Args: cobra.ExactArgs(2),
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().IntVar(&inferTopN, "top-n", dar.DefaultTopN, "labels to predict per object")
	inferCmd.Flags().IntVar(&inferWorkers, "workers", dar.MaxWorkerCount, "parallel requests (1-4)")
	inferCmd.Flags().IntVar(&inferChunkSize, "chunk-size", dar.LimitObjectsPerCall, "objects per request")
	inferCmd.Flags().BoolVar(&inferNoRetry, "no-retry", false, "do not retry failed requests")
}

func readObjects(r io.Reader) ([]dar.InferenceObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read objects: %w", err)
	}

	var objects []dar.InferenceObject
	if err := json.Unmarshal(data, &objects); err == nil {
		return objects, nil
	}
	var doc struct {
		Objects []dar.InferenceObject `json:"objects"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse objects: %w", err)
	}
	return doc.Objects, nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	modelName, path := args[0], args[1]

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open objects: %w", err)
		}
		defer f.Close()
		in = f
	}
	objects, err := readObjects(in)
	if err != nil {
		return err
	}

	session, clientOpts, err := newSession()
	if err != nil {
		return err
	}
	client := dar.NewInferenceClient(session, clientOpts...)

	opts := dar.DefaultBulkOptions()
	opts.TopN = inferTopN
	opts.WorkerCount = dar.Workers(inferWorkers)
	opts.ChunkSize = inferChunkSize
	opts.Retry = !inferNoRetry

	predictions, err := client.DoBulkInference(cmd.Context(), modelName, objects, opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, p := range predictions {
		if p.Failed() {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("some objects could not be classified", "failed", failed, "total", len(predictions))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(predictions)
}
