package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, _ []string) error {
	st := newStyles(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), st.Brand.Render("hansik"), version)
	return nil
}
