// roomtop renders a live table of rooms from a chat hub's status endpoint.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-hub/internal"
)

type Config struct {
	StatusURL string `envconfig:"ROOMTOP_STATUS_URL" default:"http://localhost:8080/status"`
	// ROOMTOP_INTERVAL=0 renders once and exits
	Interval time.Duration `envconfig:"ROOMTOP_INTERVAL" default:"0"`
	Colours  bool          `envconfig:"ROOMTOP_COLOURS" default:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		payload, err := fetchStatus(client, cfg.StatusURL)
		if err != nil {
			return err
		}
		render(payload, cfg.Colours)

		if cfg.Interval <= 0 {
			return nil
		}
		time.Sleep(cfg.Interval)
	}
}

func fetchStatus(client *http.Client, url string) (*internal.StatusPayload, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var payload internal.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding status payload: %w", err)
	}
	return &payload, nil
}

func render(payload *internal.StatusPayload, colours bool) {
	header := fmt.Sprintf("%d rooms | %d sessions | %d messages | up %ds",
		len(payload.Rooms), payload.Sessions, payload.Messages,
		payload.Process.UptimeSeconds)
	if colours {
		color.Bold.Println(header)
	} else {
		fmt.Println(header)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Members", "Messages", "Owner"})
	for _, room := range payload.Rooms {
		table.Append([]string{
			room.ID,
			room.Name,
			strconv.Itoa(room.MemberCount),
			strconv.Itoa(room.MessageCount),
			room.Owner,
		})
	}
	table.Render()

	footer := fmt.Sprintf("rss=%dMB cpu=%.1f%% delivered=%d dropped=%d",
		payload.Process.RSSBytes/1024/1024,
		payload.Process.CPUPercent,
		payload.Process.EventsDelivered,
		payload.Process.EventsDropped)
	if colours {
		color.Gray.Println(footer)
	} else {
		fmt.Println(footer)
	}
}
