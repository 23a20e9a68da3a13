package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

// SlackReporter posts a sweep summary to a Slack incoming webhook.
type SlackReporter struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackReporter creates a Slack webhook reporter.
func NewSlackReporter(webhookURL, channel string) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackReporter) Name() string { return "slack" }

var sweepColors = map[string]string{
	EventSweepCompleted: "#36a64f",
	EventSweepPartial:   "#ff9900",
	EventSweepAborted:   "#cc0000",
}

func (s *SlackReporter) Report(ctx context.Context, report model.SweepReport) error {
	fields := []slackField{
		{Title: "Trigger", Value: string(report.Trigger), Short: true},
		{Title: "Duration", Value: report.Duration().Round(time.Millisecond).String(), Short: true},
		{Title: "Users", Value: fmt.Sprintf("%d (%d failed)", report.UsersEvaluated, report.UsersFailed), Short: true},
		{Title: "Sent", Value: strconv.Itoa(report.Sent), Short: true},
		{Title: "Skipped", Value: strconv.Itoa(report.Skipped), Short: true},
		{Title: "Failed", Value: strconv.Itoa(report.Failed), Short: true},
	}
	if report.Error != "" {
		fields = append(fields, slackField{Title: "Error", Value: report.Error})
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:  sweepColors[SweepEvent(report)],
				Title:  "StockSync: alert sweep finished",
				Fields: fields,
				Footer: "StockSync",
				Ts:     report.FinishedAt.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
