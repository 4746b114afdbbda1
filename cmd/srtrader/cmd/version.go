package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the srtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("srtrader version %s\n", version)
		fmt.Println("Support/resistance paper trader for Kraken candles")
		fmt.Println("https://github.com/rustyeddy/srtrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
