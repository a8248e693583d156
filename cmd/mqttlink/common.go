package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/edgeterm/mqttlink"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// newSession builds a session from the current configuration.
func newSession() *mqttlink.Session {
	opts := []mqttlink.Option{
		mqttlink.WithKeepAlive(keepAlive),
		mqttlink.WithConnectTimeout(timeout),
		mqttlink.WithWebSocket(websocket),
		mqttlink.WithTLSProvider(loadCredentials),
		mqttlink.WithLogger(newLogger()),
	}

	return mqttlink.New(opts...)
}

// connectRequest builds a connect request from the current configuration.
func connectRequest() mqttlink.ConnectRequest {
	family := mqttlink.FamilyIPv4
	if useIPv6 {
		family = mqttlink.FamilyIPv6
	}

	id := clientID
	if id == "" {
		id = fmt.Sprintf("mqttlink-%s", uuid.NewString()[:8])
	}

	return mqttlink.ConnectRequest{
		Family:   family,
		ClientID: id,
		Username: username,
		Password: password,
		Host:     host,
		Port:     port,
		SecTag:   secTag,
	}
}

// loadCredentials resolves a security tag to a credential set: a
// `security.<tag>` section in the config file when present, otherwise the
// --ca-file/--cert-file/--key-file flags.
func loadCredentials(tag uint32, serverName string) (*tls.Config, error) {
	ca, cert, key := caFile, certFile, keyFile
	if sub := viper.Sub(fmt.Sprintf("security.%d", tag)); sub != nil {
		ca = sub.GetString("ca-file")
		cert = sub.GetString("cert-file")
		key = sub.GetString("key-file")
	}

	config := &tls.Config{
		ServerName: serverName,
	}

	if ca != "" {
		caCert, err := os.ReadFile(ca)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if cert != "" && key != "" {
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{pair}
	}

	printVerbose("Loaded credentials for security tag %d", tag)
	return config, nil
}

// awaitConnack drains notifications until the broker answers the connect
// handshake, forwarding everything else to the printer.
func awaitConnack(sess *mqttlink.Session, deadline time.Duration) error {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case n := <-sess.Notifications():
			if n.Type == mqttlink.EvtConnAck {
				if n.Result != 0 {
					return fmt.Errorf("broker refused connection: %s", connackText(n.Result))
				}
				return nil
			}
			printNotification(&n)
		case <-timer.C:
			return fmt.Errorf("no connect acknowledgement within %s", deadline)
		}
	}
}

// newLogger builds the diagnostic logger. Verbose mode enables colored
// debug output; otherwise only warnings and errors surface.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(newColorHandler(os.Stderr, level))
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
