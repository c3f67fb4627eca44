package cli

import (
	"github.com/spf13/cobra"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/internal"
)

func validate() {
	validateCmd := &cobra.Command{
		Use:   "validate [CVE-ID...]",
		Short: "Validate CVEs against the host, a container or a pod",
		Long: `Examples:
  # Validate every known CVE on this host
  $ vigil validate

  # Validate Spring4Shell in a running container
  $ vigil validate CVE-2022-22965 --container web

  # Validate Log4Shell in a pod with a specific kubeconfig
  $ vigil validate CVE-2021-44228 --pod prod/api --pod-container app --kubeconfig config

  # Print the description and draw the flow chart
  $ vigil validate CVE-2022-0847 --describe --graph

  # Save the verdicts to output/<date>.json
  $ vigil validate -o output`,
		Args: cveArgs(0, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := config.WithOptions(config.Ctx, opts)

			return internal.DoValidate(ctx, args)
		},
	}

	validateCmd.Flags().BoolVar(&opts.Describe, "describe", false, "print the description of each CVE")
	validateCmd.Flags().BoolVar(&opts.Graph, "graph", false, "write the validation flow chart of each CVE")
	validateCmd.Flags().StringVar(&opts.GraphDir, "graph-dir", ".", "directory of the flow charts")
	validateCmd.Flags().StringVar(&opts.Container, "container", "", "validate inside a running docker container")
	validateCmd.Flags().StringVar(&opts.Pod, "pod", "", "validate inside a kubernetes pod, namespace/name")
	validateCmd.Flags().StringVar(&opts.PodContainer, "pod-container", "", "container of the pod, the first one by default")
	validateCmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "default", "specific configure file")
	validateCmd.Flags().DurationVar(&opts.Timeout, "timeout", config.DefaultTimeout, "timeout of every command run on the target")
	validateCmd.Flags().IntVar(&opts.Workers, "workers", config.DefaultWorkers, "processes validated at the same time")
	validateCmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file location, \"output\" for output/<date>.json")

	rootCmd.AddCommand(validateCmd)
}
