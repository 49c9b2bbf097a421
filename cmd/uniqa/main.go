package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:           "uniqa",
		Short:         "University question answering service",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), migrateCMD(), benchCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
