// Package notify is the outbound alerting port. The engine only sees the
// Port interface; implementations fan out to logs or a Discord webhook.
package notify

import (
	"bytes"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Port is the minimal notifier the engine depends on.
type Port interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Logs writes notifications to the process log. The default Port.
type Logs struct{}

func (Logs) Info(msg string)  { logs.Info(msg) }
func (Logs) Warn(msg string)  { logs.Warn(msg) }
func (Logs) Error(msg string) { logs.Error(msg) }

const (
	colorInfo  = 0x3498db
	colorWarn  = 0xf1c40f
	colorError = 0xe74c3c
)

// Discord posts notifications to a Discord webhook. A zero webhook URL
// disables it silently so wiring stays unconditional.
type Discord struct {
	webhookURL string
	client     *http.Client
	title      string
}

// NewDiscord creates a Discord notifier.
func NewDiscord(webhookURL, title string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if title == "" {
		title = "autotrader"
	}
	return &Discord{webhookURL: webhookURL, client: client, title: title}
}

func (d *Discord) Info(msg string)  { d.send(msg, colorInfo) }
func (d *Discord) Warn(msg string)  { d.send(msg, colorWarn) }
func (d *Discord) Error(msg string) { d.send(msg, colorError) }

func (d *Discord) send(msg string, color int) {
	if d.webhookURL == "" {
		return
	}
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       d.title,
				"description": msg,
				"color":       color,
				"timestamp":   time.Now().Format(time.RFC3339),
			},
		},
	}
	data, err := sonic.ConfigFastest.Marshal(payload)
	if err != nil {
		logs.Errorf("notify: marshal discord payload, err: %+v", err)
		return
	}
	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		logs.Errorf("notify: post discord webhook, err: %+v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		logs.Errorf("notify: discord webhook, err: %+v", errors.Errorf("status: %d", resp.StatusCode))
	}
}
