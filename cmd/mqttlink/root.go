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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile   string
	host      string
	port      uint16
	useIPv6   bool
	clientID  string
	username  string
	password  string
	secTag    uint32
	caFile    string
	certFile  string
	keyFile   string
	websocket bool
	timeout   time.Duration
	keepAlive time.Duration

	// Output flags
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "mqttlink",
	Short: "MQTT session client",
	Long: `mqttlink is an MQTT 3.1.1 session client for command-driven devices.

It manages a single broker connection at a time, resolving the broker
to a specific address family, optionally securing the link with a
pre-provisioned credential set referenced by a security tag, and
reporting every protocol event as it arrives.

Examples:
  # Publish a message
  mqttlink pub -t "sensor/temp" -m "23.5" -H broker.local

  # Subscribe to a topic over IPv6
  mqttlink sub -t "sensor/#" -H broker.local -6

  # Interactive session
  mqttlink shell -H broker.local`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Connection flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mqttlink.yaml)")
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "localhost", "broker hostname or literal address")
	rootCmd.PersistentFlags().Uint16VarP(&port, "port", "p", 1883, "broker port")
	rootCmd.PersistentFlags().BoolVarP(&useIPv6, "ipv6", "6", false, "resolve the broker to an IPv6 address")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "client ID (auto-generated if empty)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "username for authentication")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "P", "", "password for authentication (ignored without a username)")
	rootCmd.PersistentFlags().Uint32Var(&secTag, "sec-tag", 0, "security tag of the TLS credential set (0 disables TLS)")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca-file", "", "CA certificate file for the security tag")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert-file", "", "client certificate file for the security tag")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "client key file for the security tag")
	rootCmd.PersistentFlags().BoolVar(&websocket, "websocket", false, "connect over WebSocket")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "connection timeout")
	rootCmd.PersistentFlags().DurationVar(&keepAlive, "keepalive", 60*time.Second, "keep-alive interval")

	// Output flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("ipv6", rootCmd.PersistentFlags().Lookup("ipv6"))
	viper.BindPFlag("client-id", rootCmd.PersistentFlags().Lookup("client-id"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("sec-tag", rootCmd.PersistentFlags().Lookup("sec-tag"))
	viper.BindPFlag("ca-file", rootCmd.PersistentFlags().Lookup("ca-file"))
	viper.BindPFlag("cert-file", rootCmd.PersistentFlags().Lookup("cert-file"))
	viper.BindPFlag("key-file", rootCmd.PersistentFlags().Lookup("key-file"))
	viper.BindPFlag("websocket", rootCmd.PersistentFlags().Lookup("websocket"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("keepalive", rootCmd.PersistentFlags().Lookup("keepalive"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config"))
		viper.SetConfigName(".mqttlink")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MQTTLINK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Apply viper values to flags
	host = viper.GetString("host")
	port = uint16(viper.GetUint32("port"))
	useIPv6 = viper.GetBool("ipv6")
	clientID = viper.GetString("client-id")
	username = viper.GetString("username")
	password = viper.GetString("password")
	secTag = viper.GetUint32("sec-tag")
	caFile = viper.GetString("ca-file")
	certFile = viper.GetString("cert-file")
	keyFile = viper.GetString("key-file")
	websocket = viper.GetBool("websocket")
	timeout = viper.GetDuration("timeout")
	keepAlive = viper.GetDuration("keepalive")
	verbose = viper.GetBool("verbose")
	noColor = viper.GetBool("no-color")
}
