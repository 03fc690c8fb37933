// Package discord posts import and collector notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C - aborted runs
	colorGreen  = 5763719  // 0x57F287 - completed runs
	colorYellow = 16776960 // 0xFFFF00 - completed with rejected lines

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3

	// Discord rejects embed field values over 1024 characters
	maxFieldLen = 1024
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// ImportSummary is what an import run reports when it ends
type ImportSummary struct {
	RunID        string
	Sink         string
	State        string // completed, aborted or canceled
	LinesRead    int64
	Imported     int64
	Failed       int64
	Elapsed      time.Duration
	FirstFailure string
	Error        string
}

// NewImportSummaryPayload builds the end-of-run embed
func NewImportSummaryPayload(s ImportSummary) WebhookPayload {
	title := "✅ Import Completed"
	color := colorGreen
	switch {
	case s.State != "completed":
		title = "❌ Import " + capitalize(s.State)
		color = colorRed
	case s.Failed > 0:
		title = "⚠️ Import Completed With Rejects"
		color = colorYellow
	}

	fields := []EmbedField{
		{Name: "Imported", Value: formatNumber(s.Imported), Inline: true},
		{Name: "Failed", Value: formatNumber(s.Failed), Inline: true},
		{Name: "Lines Read", Value: formatNumber(s.LinesRead), Inline: true},
		{Name: "Runtime", Value: formatDuration(s.Elapsed), Inline: true},
		{Name: "Sink", Value: s.Sink, Inline: true},
	}
	if s.FirstFailure != "" {
		fields = append(fields, EmbedField{Name: "First Failure", Value: truncate(s.FirstFailure, maxFieldLen)})
	}
	if s.Error != "" {
		fields = append(fields, EmbedField{Name: "Error", Value: truncate(s.Error, maxFieldLen)})
	}

	payload := WebhookPayload{
		Embeds: []Embed{
			{
				Title:     title,
				Color:     color,
				Fields:    fields,
				Footer:    &EmbedFooter{Text: "Run " + s.RunID},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
	if color == colorRed {
		payload.Content = "@here Import run did not complete"
	}
	return payload
}

// NewCollectorStoppedPayload builds the embed sent when the collector stops on an error
func NewCollectorStoppedPayload(written int64, nextSeq int64, runtime time.Duration, reason error) WebhookPayload {
	return WebhookPayload{
		Content: "@here Collector stopped",
		Embeds: []Embed{
			{
				Title: "🔑 Collector Stopped",
				Color: colorRed,
				Fields: []EmbedField{
					{Name: "Matches Collected", Value: formatNumber(written), Inline: true},
					{Name: "Runtime", Value: formatDuration(runtime), Inline: true},
					{Name: "Resume Seq", Value: strconv.FormatInt(nextSeq, 10), Inline: true},
					{Name: "Reason", Value: truncate(reason.Error(), maxFieldLen)},
				},
				Footer: &EmbedFooter{
					Text: "Restart with -start-seq to resume",
				},
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendImportSummary posts the end-of-run summary
func (c *WebhookClient) SendImportSummary(ctx context.Context, s ImportSummary) error {
	return c.sendPayload(ctx, NewImportSummaryPayload(s))
}

// SendCollectorStopped posts a collector stop notification
func (c *WebhookClient) SendCollectorStopped(ctx context.Context, written, nextSeq int64, runtime time.Duration, reason error) error {
	return c.sendPayload(ctx, NewCollectorStoppedPayload(written, nextSeq, runtime, reason))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.FormatInt(n, 10)
	if n < 1000 {
		return s
	}

	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym Zs"
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
