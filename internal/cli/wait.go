package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibus/dar-go/pkg/dar"
)

var (
	waitTimeout  time.Duration
	waitInterval time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a dataset, training job or deployment to finish",
	Long: `Poll a resource until it reaches a final state.

Exits with an error if the resource fails or the timeout is exceeded. A
timeout does not stop the resource: it may still finish on the service.

Examples:
  darctl wait dataset 6e4a5a30-...
  darctl wait job 2f9b... --timeout 2h
  darctl wait deployment 91c4... --interval 10s`,
}

var waitDatasetCmd = &cobra.Command{
	Use:   "dataset <dataset-id>",
	Short: "Wait for dataset validation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, clientOpts, err := newSession()
		if err != nil {
			return err
		}
		client := dar.NewDataManagerClient(session, clientOpts...)
		ds, err := client.WaitForDatasetValidation(cmd.Context(), args[0], waitOptions()...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s: %s\n", ds.ID, ds.Status)
		return nil
	},
}

var waitJobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Wait for a training job, showing its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, clientOpts, err := newSession()
		if err != nil {
			return err
		}
		client := dar.NewModelManagerClient(session, clientOpts...)
		job, err := runJobProgress(cmd.Context(), cmd.OutOrStdout(),
			func(ctx context.Context, observe func(*dar.Job)) (*dar.Job, error) {
				return client.WaitForJob(ctx, args[0], append(waitOptions(), dar.OnUpdate(observe))...)
			})
		if err != nil {
			return err
		}
		if job != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", job.ID, job.Status)
		}
		return nil
	},
}

var waitDeploymentCmd = &cobra.Command{
	Use:   "deployment <deployment-id>",
	Short: "Wait for a deployment to succeed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, clientOpts, err := newSession()
		if err != nil {
			return err
		}
		client := dar.NewModelManagerClient(session, clientOpts...)
		d, err := client.WaitForDeployment(cmd.Context(), args[0], waitOptions()...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deployment %s for model %s: %s\n", d.ID, d.ModelName, d.Status)
		return nil
	},
}

// waitOptions turns the --timeout and --interval flags into wait options.
func waitOptions() []dar.WaitOption {
	var opts []dar.WaitOption
	if waitTimeout > 0 {
		opts = append(opts, dar.WithTimeout(waitTimeout))
	}
	if waitInterval > 0 {
		opts = append(opts, dar.WithInterval(waitInterval))
	}
	return opts
}

func init() {
	waitCmd.PersistentFlags().DurationVar(&waitTimeout, "timeout", 0, "overall wait budget (default depends on the resource)")
	waitCmd.PersistentFlags().DurationVar(&waitInterval, "interval", 0, "pause between polls (default depends on the resource)")

	waitCmd.AddCommand(waitDatasetCmd)
	waitCmd.AddCommand(waitJobCmd)
	waitCmd.AddCommand(waitDeploymentCmd)
}
