package main

import (
	"fmt"
	"runtime"

	"github.com/edgeterm/mqttlink/engine"
	"github.com/spf13/cobra"
)

var (
	// Build information, set via ldflags
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mqttlink version %s\n", version)
		fmt.Printf("  MQTT Protocol: %d (%s)\n", engine.ProtocolLevel, engine.ProtocolName)
		fmt.Printf("  Go version:    %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Git commit:    %s\n", commit)
		fmt.Printf("  Build date:    %s\n", buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
