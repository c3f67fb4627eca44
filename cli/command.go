package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/internal"
	"github.com/kvesta/vigil/internal/cves"
	"github.com/kvesta/vigil/pkg/catalog"
)

const versions = "vigil v0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "vigil [OPTIONS]",
		Short: "Validate whether CVEs apply to a host or a container",
		Long: `Vigil decides for each known CVE whether a host, a Docker container or a Kubernetes pod
is Vulnerable, Not Vulnerable or whether it could not be determined`,
		SilenceUsage: true,
	}

	opts = config.Options{}
)

func Execute() error {
	validate()

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the CVEs that can be validated",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"CVE", "Name", "Score"})
			for _, id := range cves.IDs() {
				e, err := cat.Get(id)
				if err != nil {
					return err
				}
				table.Append([]string{e.ID, e.Name, strconv.FormatFloat(e.CVSS, 'f', 1, 64)})
			}
			table.Render()

			return nil
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe CVE-ID",
		Short: "Print the description of a CVE",
		Args:  cveArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}

			e, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Print(e.Describe())

			return nil
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph CVE-ID",
		Short: "Write the validation flow chart of a CVE as a graphviz file",
		Args:  cveArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}

			modules, err := cves.Load(cat, args)
			if err != nil {
				return err
			}

			_, err = internal.DrawGraph(modules[0], opts.GraphDir)
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and quit",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(versions)
		},
	}

	graphCmd.Flags().StringVar(&opts.GraphDir, "dir", ".", "directory of the flow chart")

	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "trace every command run on the target")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if opts.Debug {
			log.SetLevel(log.DebugLevel)
		}
	}

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd.Execute()
}
