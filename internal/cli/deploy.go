package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aibus/dar-go/pkg/dar"
)

var deployNoWait bool

var deployCmd = &cobra.Command{
	Use:   "deploy <model-name>",
	Short: "Deploy a model and wait until it serves requests",
	Long: `Ensure a deployment exists for the model and wait for it to succeed.

A failed or stopped deployment is deleted and re-created. A running
deployment may incur costs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, clientOpts, err := newSession()
		if err != nil {
			return err
		}
		client := dar.NewModelManagerClient(session, clientOpts...)

		var d *dar.Deployment
		if deployNoWait {
			d, err = client.EnsureDeploymentExists(cmd.Context(), args[0])
		} else {
			d, err = client.DeployAndWait(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deployment %s for model %s: %s\n", d.ID, d.ModelName, d.Status)
		return nil
	},
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy <model-name>",
	Short: "Delete the deployment of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, clientOpts, err := newSession()
		if err != nil {
			return err
		}
		client := dar.NewModelManagerClient(session, clientOpts...)

		id, err := client.EnsureModelIsUndeployed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s is not deployed\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted deployment %s of model %s\n", id, args[0])
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployNoWait, "no-wait", false, "return once the deployment exists")
}
