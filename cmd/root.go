package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-id",
	Short: "Enroll people by photo and recognize them later",
	Long: `Face ID stores one face embedding per enrolled photo and recognizes new
photos by finding the closest enrolled face.

It runs as a web service (face-id serve) with an upload form and a JSON API,
and offers the same operations on the command line.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (same as LOG_DEBUG=true)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
