package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is set by ldflags at build time; "dev" otherwise.
var buildVersion = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version": buildVersion,
			"name":    "meowd",
		}
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(out))
	},
}
