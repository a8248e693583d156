package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edgeterm/mqttlink"
	"github.com/spf13/cobra"
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a message to a topic",
	Long: `Publish one or more messages to an MQTT topic.

The message payload can be provided via:
  - The -m/--message flag
  - A file with -f/--file
  - Standard input (piped)

Examples:
  # Simple publish
  mqttlink pub -t "sensor/temp" -m "23.5"

  # Publish with QoS 1 and retain
  mqttlink pub -t "config/device1" -m '{"enabled":true}' -q 1 --retain

  # Publish from stdin
  echo "hello" | mqttlink pub -t "test"

  # Repeated publishing (100 messages, 1 second interval)
  mqttlink pub -t "heartbeat" -m "ping" -n 100 -i 1s`,
	RunE: runPub,
}

var (
	pubTopic    string
	pubMessage  string
	pubFile     string
	pubQoS      int
	pubRetain   bool
	pubCount    int
	pubInterval time.Duration
)

func init() {
	rootCmd.AddCommand(pubCmd)

	pubCmd.Flags().StringVarP(&pubTopic, "topic", "t", "", "topic to publish to (required)")
	pubCmd.Flags().StringVarP(&pubMessage, "message", "m", "", "message payload")
	pubCmd.Flags().StringVarP(&pubFile, "file", "f", "", "read payload from file")
	pubCmd.Flags().IntVarP(&pubQoS, "qos", "q", 0, "QoS level (0, 1, or 2)")
	pubCmd.Flags().BoolVarP(&pubRetain, "retain", "r", false, "retain message")
	pubCmd.Flags().IntVarP(&pubCount, "count", "n", 1, "number of messages to publish")
	pubCmd.Flags().DurationVarP(&pubInterval, "interval", "i", 0, "interval between messages")

	pubCmd.MarkFlagRequired("topic")
}

func runPub(cmd *cobra.Command, args []string) error {
	payload, err := readPayload()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("empty payload: provide --message, --file, or pipe stdin")
	}

	retain := 0
	if pubRetain {
		retain = 1
	}

	sess := newSession()
	if err := sess.Connect(context.Background(), connectRequest()); err != nil {
		return err
	}
	defer sess.Disconnect()

	if err := awaitConnack(sess, timeout); err != nil {
		return err
	}

	for i := 0; i < pubCount; i++ {
		if _, err := sess.Publish(pubTopic, payload, pubQoS, retain); err != nil {
			return err
		}
		if pubQoS > 0 {
			if err := awaitPubDone(sess, pubQoS); err != nil {
				return err
			}
		}
		printVerbose("Published %d bytes to %s", len(payload), pubTopic)

		if i < pubCount-1 && pubInterval > 0 {
			time.Sleep(pubInterval)
		}
	}

	return nil
}

// awaitPubDone waits for the acknowledgement that finishes the publish
// handshake for the given QoS level.
func awaitPubDone(sess *mqttlink.Session, qos int) error {
	want := mqttlink.EvtPubAck
	if qos == 2 {
		want = mqttlink.EvtPubComp
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case n := <-sess.Notifications():
			if n.Type == want {
				if n.Result != 0 {
					return fmt.Errorf("publish failed with result %d", n.Result)
				}
				return nil
			}
			printNotification(&n)
		case <-timer.C:
			return fmt.Errorf("no publish acknowledgement within %s", timeout)
		}
	}
}

func readPayload() ([]byte, error) {
	if pubMessage != "" {
		return []byte(pubMessage), nil
	}
	if pubFile != "" {
		data, err := os.ReadFile(pubFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return data, nil
	}

	// Piped stdin
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return nil, nil
}
