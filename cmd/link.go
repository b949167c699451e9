// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/pkg/advlink"
)

var (
	linkPingTimeout int
	linkPingCount   int
	linkLogValidate bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Talk to an advertising bridge",
	Long: `Diagnostics for advertising bridges reached over a serial port or a
WebSocket. The bridge speaks advlink frames: CBOR messages framed with byte
stuffing and a CRC-16.`,
}

var linkPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING_REQUEST to the bridge and wait for PING_RESPONSE",
	Long: `Send PING_REQUEST frames to the bridge and wait for PING_RESPONSE.

This is useful for verifying:
  - the connection is established
  - HTTP Basic authentication works (WebSocket)
  - bidirectional frame flow works

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runLinkPing,
}

var linkLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Display frames sent by the bridge in human-readable format",
	RunE:  runLinkLog,
}

func init() {
	linkPingCmd.Flags().IntVar(&linkPingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	linkPingCmd.Flags().IntVar(&linkPingCount, "count", 3, "Number of pings to send")
	linkLogCmd.Flags().BoolVar(&linkLogValidate, "validate", false, "Check every frame and print statistics on exit")

	linkCmd.AddCommand(linkPingCmd, linkLogCmd)
	rootCmd.AddCommand(linkCmd)
}

func openLink() (Connection, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	return OpenConnection(cfg.Radio.Link)
}

type linkResult struct {
	frame *advlink.Frame
	err   error
}

func runLinkPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Advcast - Bridge Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", linkPingTimeout)
	fmt.Printf("Count: %d pings\n\n", linkPingCount)

	link := advlink.NewLink(conn)

	// single reader for the whole run
	frames := make(chan linkResult, 8)
	go func() {
		for {
			f, err := link.Receive(nil)
			frames <- linkResult{frame: f, err: err}
			if err != nil {
				return
			}
		}
	}()

	successCount := 0
	failCount := 0
	readFailed := false

	for i := 1; i <= linkPingCount && !readFailed; i++ {
		fmt.Printf("Ping %d/%d: ", i, linkPingCount)

		startTime := time.Now()
		if _, err := link.Send(advlink.NewPingRequest()); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		timeout := time.After(time.Duration(linkPingTimeout) * time.Second)
	wait:
		for {
			select {
			case r := <-frames:
				if r.err != nil {
					fmt.Printf("READ FAILED: %v\n", r.err)
					failCount++
					readFailed = true
					break wait
				}
				if r.frame.Type() != advlink.MsgPingResponse {
					continue
				}
				rtt := time.Since(startTime)
				uptime, _ := advlink.GetMapUint(r.frame.PayloadMap(), 0)
				fmt.Printf("PONG from bridge, uptime=%s, rtt=%v\n", formatUptime(uptime), rtt.Round(time.Millisecond))
				successCount++
				break wait

			case <-timeout:
				fmt.Printf("TIMEOUT (no response in %ds)\n", linkPingTimeout)
				failCount++
				break wait
			}
		}

		if i < linkPingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		linkPingCount, successCount, float64(linkPingCount-successCount)/float64(linkPingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

func runLinkLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Advcast - Bridge Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := advlink.NewStatistics()
	ctx := signalContext()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	link := advlink.NewLink(conn)
	for {
		f, err := link.Receive(func(decodeErr error) {
			fmt.Printf("[ERROR] %v\n", decodeErr)
			stats.Update(nil, decodeErr, nil)
		})
		if err != nil {
			if linkLogValidate {
				fmt.Print("\n" + stats.String())
			}
			if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}

		fmt.Print(advlink.FormatFrame(f))
		if linkLogValidate {
			problems := advlink.ValidateFrame(f)
			for _, p := range problems {
				fmt.Printf("  [ANOMALY] %s\n", p.Message)
			}
			stats.Update(f, nil, problems)
		}
	}
}
