package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/cmd/voicebridge/internal/build"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(build.Version)
			return
		}
		fmt.Println(build.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the bare version only")
	rootCmd.AddCommand(versionCmd)
}
