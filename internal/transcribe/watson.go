package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kikitori/kikitori/internal/models"
)

// WatsonConfig holds the connection settings for an IBM Watson
// speech-to-text endpoint (or anything wire-compatible with it).
type WatsonConfig struct {
	Endpoint string
	Username string
	Password string
	Model    string
	Timeout  time.Duration
}

// WatsonClient implements Transcriber against the Watson recognize API.
type WatsonClient struct {
	cfg    WatsonConfig
	client *http.Client
	logger *zap.Logger
}

// NewWatsonClient creates a client for cfg. A zero Timeout defaults to five
// minutes; recognition of a full upload chunk can take that long.
func NewWatsonClient(cfg WatsonConfig, logger *zap.Logger) *WatsonClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatsonClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// recognition mirrors the recognize response. Each timestamp entry is a
// mixed-type array of word, start and end.
type recognition struct {
	Results []struct {
		Alternatives []struct {
			Timestamps []wordTimestamp `json:"timestamps"`
			Transcript string          `json:"transcript"`
			Confidence float64         `json:"confidence"`
		} `json:"alternatives"`
		Final bool `json:"final"`
	} `json:"results"`
	ResultIndex int `json:"result_index"`
}

type wordTimestamp struct {
	Word  string
	Start float64
	End   float64
}

func (t *wordTimestamp) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("timestamp entry has %d elements, want 3", len(raw))
	}
	word, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("timestamp word is %T, want string", raw[0])
	}
	start, ok := raw[1].(float64)
	if !ok {
		return fmt.Errorf("timestamp start is %T, want number", raw[1])
	}
	end, ok := raw[2].(float64)
	if !ok {
		return fmt.Errorf("timestamp end is %T, want number", raw[2])
	}
	t.Word, t.Start, t.End = word, start, end
	return nil
}

// Transcribe posts audio to the recognize endpoint and flattens the
// response's result blocks, in order, into a single span sequence.
func (c *WatsonClient) Transcribe(ctx context.Context, audio io.Reader) ([]models.WordSpan, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid transcriber endpoint: %w", err)
	}
	u = u.JoinPath("v1", "recognize")
	q := u.Query()
	q.Set("timestamps", "true")
	q.Set("continuous", "true")
	if c.cfg.Model != "" {
		q.Set("model", c.cfg.Model)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), audio)
	if err != nil {
		return nil, fmt.Errorf("failed to build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("recognize returned %s: %s", resp.Status, string(body))
	}

	var rec recognition
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recognize response: %w", err)
	}

	spans := flatten(&rec)
	c.logger.Debug("recognized audio chunk",
		zap.Int("result_blocks", len(rec.Results)),
		zap.Int("words", len(spans)),
		zap.Duration("took", time.Since(start)))
	return spans, nil
}

// flatten concatenates the first alternative of every result block.
func flatten(rec *recognition) []models.WordSpan {
	var spans []models.WordSpan
	for _, result := range rec.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		for _, ts := range result.Alternatives[0].Timestamps {
			spans = append(spans, models.WordSpan{Word: ts.Word, Start: ts.Start, End: ts.End})
		}
	}
	return spans
}
