package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check broker connectivity",
	Long: `Connect to the broker, report the session state, and disconnect.

Useful as a reachability and credential check before scripting pub/sub.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess := newSession()
	if err := sess.Connect(context.Background(), connectRequest()); err != nil {
		return err
	}
	defer sess.Disconnect()

	if err := awaitConnack(sess, timeout); err != nil {
		return err
	}

	st := sess.Status()
	fmt.Printf("Connected:   %s\n", color.GreenString("yes"))
	fmt.Printf("Client ID:   %s\n", st.ClientID)
	fmt.Printf("Broker:      %s:%d (%s)\n", st.Host, st.Port, st.Family)
	if st.SecTag != 0 {
		fmt.Printf("Security:    TLS (tag %d)\n", st.SecTag)
	} else {
		fmt.Printf("Security:    none\n")
	}
	return nil
}
