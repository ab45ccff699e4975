package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aibus/dar-go/pkg/dar"
)

var (
	trainTemplateID string
	trainSchemaFile string
)

var trainCmd = &cobra.Command{
	Use:   "train <model-name> <data.csv>",
	Short: "Train a model from a CSV file",
	Long: `Create a dataset schema and dataset, upload the CSV file, wait for
validation and train a model, showing the training progress.

Nothing is cleaned up on failure: the schema and dataset stay on the
service.

Example:
  darctl train my-model products.csv --template d7810207-... --schema schema.json`,
	Args: cobra.ExactArgs(2),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainTemplateID, "template", "", "model template ID (required)")
	trainCmd.Flags().StringVar(&trainSchemaFile, "schema", "", "dataset schema JSON file (required)")
	_ = trainCmd.MarkFlagRequired("template")
	_ = trainCmd.MarkFlagRequired("schema")
}

func runTrain(cmd *cobra.Command, args []string) error {
	modelName, dataPath := args[0], args[1]

	schemaData, err := os.ReadFile(trainSchemaFile)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaData, &schema); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	data, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("open data: %w", err)
	}
	defer data.Close()

	session, clientOpts, err := newSession()
	if err != nil {
		return err
	}
	creator := dar.NewModelCreator(session, clientOpts...)

	var model *dar.Model
	_, err = runJobProgress(cmd.Context(), cmd.OutOrStdout(),
		func(ctx context.Context, observe func(*dar.Job)) (*dar.Job, error) {
			var err error
			model, err = creator.Create(ctx, data, trainTemplateID, schema, modelName, dar.OnUpdate(observe))
			return nil, err
		})
	if err != nil {
		return err
	}
	if model != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Model %s trained by job %s\n", model.Name, model.JobID)
	}
	return nil
}
