package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgeterm/mqttlink"
	"github.com/spf13/cobra"
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to a topic",
	Long: `Subscribe to an MQTT topic and print received messages.

Each message prints a header with the topic and payload lengths followed
by the topic and the raw payload bytes. Press Ctrl+C to unsubscribe and
disconnect.

Examples:
  # Subscribe to a topic
  mqttlink sub -t "sensor/#"

  # Subscribe with QoS 1, exit after 10 messages
  mqttlink sub -t "alerts/+" -q 1 -n 10`,
	RunE: runSub,
}

var (
	subTopic string
	subQoS   int
	subCount int
)

func init() {
	rootCmd.AddCommand(subCmd)

	subCmd.Flags().StringVarP(&subTopic, "topic", "t", "", "topic filter to subscribe to (required)")
	subCmd.Flags().IntVarP(&subQoS, "qos", "q", 0, "maximum QoS level (0, 1, or 2)")
	subCmd.Flags().IntVarP(&subCount, "count", "n", 0, "exit after this many messages (0 = run until interrupted)")

	subCmd.MarkFlagRequired("topic")
}

func runSub(cmd *cobra.Command, args []string) error {
	sess := newSession()
	if err := sess.Connect(context.Background(), connectRequest()); err != nil {
		return err
	}
	defer sess.Disconnect()

	if err := awaitConnack(sess, timeout); err != nil {
		return err
	}

	if err := sess.Subscribe(subTopic, subQoS); err != nil {
		return err
	}
	printVerbose("Subscribed to %s (QoS %d)", subTopic, subQoS)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	received := 0
	for {
		select {
		case n := <-sess.Notifications():
			printNotification(&n)
			if n.Type == mqttlink.EvtDisconnect {
				return fmt.Errorf("connection lost")
			}
			if n.Type == mqttlink.EvtPublish && n.Message != nil {
				received++
				if subCount > 0 && received >= subCount {
					return unsubAndClose(sess)
				}
			}
		case <-sigCh:
			fmt.Fprintln(os.Stderr)
			return unsubAndClose(sess)
		}
	}
}

func unsubAndClose(sess *mqttlink.Session) error {
	if err := sess.Unsubscribe(subTopic); err != nil {
		printError("unsubscribe failed: %v", err)
		return nil
	}

	// Give the unsubscribe acknowledgement a moment to arrive.
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	for {
		select {
		case n := <-sess.Notifications():
			if n.Type == mqttlink.EvtUnsubAck {
				return nil
			}
			printNotification(&n)
		case <-timer.C:
			return nil
		}
	}
}

var unsubCmd = &cobra.Command{
	Use:   "unsub",
	Short: "Unsubscribe from a topic",
	Long: `Connect, remove a subscription from a topic, and disconnect.

Useful for clearing a persistent session's subscription state.`,
	RunE: runUnsub,
}

var unsubTopic string

func init() {
	rootCmd.AddCommand(unsubCmd)

	unsubCmd.Flags().StringVarP(&unsubTopic, "topic", "t", "", "topic filter to unsubscribe from (required)")
	unsubCmd.MarkFlagRequired("topic")
}

func runUnsub(cmd *cobra.Command, args []string) error {
	sess := newSession()
	if err := sess.Connect(context.Background(), connectRequest()); err != nil {
		return err
	}
	defer sess.Disconnect()

	if err := awaitConnack(sess, timeout); err != nil {
		return err
	}

	if err := sess.Unsubscribe(unsubTopic); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case n := <-sess.Notifications():
			if n.Type == mqttlink.EvtUnsubAck {
				printVerbose("Unsubscribed from %s", unsubTopic)
				return nil
			}
			printNotification(&n)
		case <-timer.C:
			return fmt.Errorf("no unsubscribe acknowledgement within %s", timeout)
		}
	}
}
