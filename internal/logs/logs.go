package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/delta10/wms-probe/internal/config"
)

// NewLogger builds the process logger. An empty level means info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	return cfg.Build()
}

func NewLogBackend(backend config.LogBackend, client *http.Client) *LogBackend {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	return &LogBackend{
		Config: backend,
		client: client,
	}
}

// LogBackend pushes log lines to a Loki compatible endpoint.
type LogBackend struct {
	Config config.LogBackend
	client *http.Client
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]any           `json:"values"`
}

type Body struct {
	Streams []Stream `json:"streams"`
}

func (l *LogBackend) WriteLog(ctx context.Context, labels map[string]string, line map[string]string) error {
	parsedURL, err := url.Parse(l.Config.BaseURL)
	if err != nil {
		return err
	}

	parsedURL = parsedURL.JoinPath("/loki/api/v1/push")

	marshalledLine, err := json.Marshal(line)
	if err != nil {
		return err
	}

	body := Body{
		Streams: []Stream{
			{
				Stream: labels,
				Values: [][]any{
					{
						fmt.Sprint(time.Now().UnixNano()),
						string(marshalledLine),
					},
				},
			},
		},
	}

	marshalled, err := json.Marshal(body)
	if err != nil {
		return err
	}

	logRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(marshalled))
	if err != nil {
		return err
	}

	logRequest.Header.Add("Content-Type", "application/json")

	logResponse, err := l.client.Do(logRequest)
	if err != nil {
		return err
	}

	defer logResponse.Body.Close()

	if logResponse.StatusCode != http.StatusNoContent {
		return fmt.Errorf("could not create log entry: HTTP %d", logResponse.StatusCode)
	}

	return nil
}
