// Copyright 2026 Edgeterm Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/edgeterm/mqttlink"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:     "shell",
	Aliases: []string{"interactive", "repl"},
	Short:   "Interactive session shell",
	Long: `Start an interactive session shell.

The shell drives one MQTT session at a time. Protocol events print
asynchronously as they arrive.

Commands:
  connect [host] [port]     Connect over IPv4
  connect6 [host] [port]    Connect over IPv6
  disconnect                Disconnect from the broker
  status                    Show connection status

  pub <topic> <qos> <retain> [message]
                            Publish a message; omit the message to enter
                            data mode and stream chunks line by line,
                            ending with a single "." on its own line
  sub <topic> [qos]         Subscribe to a topic
  unsub <topic>             Unsubscribe from a topic

  clear                     Clear screen
  help                      Show help
  quit, exit                Exit the shell

Examples:
  mqttlink shell
  mqttlink shell -H broker.local --sec-tag 16842753 -p 8883`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shellSession struct {
	sess   *mqttlink.Session
	reader *bufio.Reader
}

func runShell(cmd *cobra.Command, args []string) error {
	sh := &shellSession{
		sess:   newSession(),
		reader: bufio.NewReader(os.Stdin),
	}

	// Ctrl+C must not kill an active session by surprise.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUse 'quit' or 'exit' to leave the shell")
	}()

	go func() {
		for n := range sh.sess.Notifications() {
			printNotification(&n)
		}
	}()

	fmt.Println(color.New(color.Bold).Sprint("mqttlink shell"))
	fmt.Println("Type 'help' for available commands")
	fmt.Println()

	for {
		fmt.Print(sh.prompt())

		line, err := sh.reader.ReadString('\n')
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if exit := sh.execute(line); exit {
			break
		}
	}

	if sh.sess.Connected() {
		sh.sess.Disconnect()
	}
	return nil
}

func (sh *shellSession) prompt() string {
	if sh.sess.Connected() {
		st := sh.sess.Status()
		return fmt.Sprintf("mqtt[%s@%s]> ", color.GreenString("connected"), st.Host)
	}
	return fmt.Sprintf("mqtt[%s]> ", color.RedString("disconnected"))
}

func (sh *shellSession) execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		fmt.Println("Goodbye!")
		return true

	case "help", "?":
		sh.showHelp()

	case "clear", "cls":
		fmt.Print("\033[2J\033[H")

	case "connect":
		sh.connect(args, mqttlink.FamilyIPv4)

	case "connect6":
		sh.connect(args, mqttlink.FamilyIPv6)

	case "disconnect":
		if err := sh.sess.Disconnect(); err != nil {
			printError("%v", err)
		}

	case "status":
		sh.showStatus()

	case "pub":
		sh.publish(args)

	case "sub":
		sh.subscribe(args)

	case "unsub":
		sh.unsubscribe(args)

	default:
		printError("unknown command %q, type 'help'", cmd)
	}

	return false
}

func (sh *shellSession) connect(args []string, family mqttlink.Family) {
	req := connectRequest()
	req.Family = family

	if len(args) > 0 {
		req.Host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			printError("invalid port %q", args[1])
			return
		}
		req.Port = uint16(p)
	}

	if err := sh.sess.Connect(context.Background(), req); err != nil {
		printError("%v", err)
		return
	}
	fmt.Printf("Connecting to %s:%d as %s\n", req.Host, req.Port, req.ClientID)
}

func (sh *shellSession) showStatus() {
	st := sh.sess.Status()
	if !st.Connected {
		fmt.Println("Not connected")
		return
	}
	fmt.Printf("Connected:   %s\n", color.GreenString("yes"))
	fmt.Printf("Client ID:   %s\n", st.ClientID)
	fmt.Printf("Broker:      %s:%d (%s)\n", st.Host, st.Port, st.Family)
	if st.SecTag != mqttlink.NoSecTag {
		fmt.Printf("Security:    TLS (tag %d)\n", st.SecTag)
	} else {
		fmt.Printf("Security:    none\n")
	}
}

func (sh *shellSession) publish(args []string) {
	if len(args) < 3 {
		printError("usage: pub <topic> <qos> <retain> [message]")
		return
	}

	qos, err := strconv.Atoi(args[1])
	if err != nil {
		printError("invalid qos %q", args[1])
		return
	}
	retain, err := strconv.Atoi(args[2])
	if err != nil {
		printError("invalid retain %q", args[2])
		return
	}

	var payload []byte
	if len(args) > 3 {
		payload = []byte(strings.Join(args[3:], " "))
	}

	stream, err := sh.sess.Publish(args[0], payload, qos, retain)
	if err != nil {
		printError("%v", err)
		return
	}
	if stream == nil {
		return
	}

	// Data mode: every line is one chunk, a lone "." ends the stream.
	fmt.Println("Data mode, end with a single '.' line")
	defer stream.Exit()
	for {
		fmt.Print(". ")
		line, err := sh.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "." {
			return
		}
		if err := stream.Send([]byte(line)); err != nil {
			printError("%v", err)
			return
		}
	}
}

func (sh *shellSession) subscribe(args []string) {
	if len(args) < 1 {
		printError("usage: sub <topic> [qos]")
		return
	}

	qos := 0
	if len(args) > 1 {
		q, err := strconv.Atoi(args[1])
		if err != nil {
			printError("invalid qos %q", args[1])
			return
		}
		qos = q
	}

	if err := sh.sess.Subscribe(args[0], qos); err != nil {
		printError("%v", err)
	}
}

func (sh *shellSession) unsubscribe(args []string) {
	if len(args) < 1 {
		printError("usage: unsub <topic>")
		return
	}

	if err := sh.sess.Unsubscribe(args[0]); err != nil {
		printError("%v", err)
	}
}

func (sh *shellSession) showHelp() {
	fmt.Print(`Commands:
  connect [host] [port]                 Connect over IPv4
  connect6 [host] [port]                Connect over IPv6
  disconnect                            Disconnect from the broker
  status                                Show connection status
  pub <topic> <qos> <retain> [message]  Publish (no message = data mode)
  sub <topic> [qos]                     Subscribe to a topic
  unsub <topic>                         Unsubscribe from a topic
  clear                                 Clear screen
  help                                  Show this help
  quit, exit                            Exit the shell
`)
}
