package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSGateway posts messages to a Fast2SMS-compatible bulk endpoint.
type SMSGateway struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

type smsRequest struct {
	Route    string `json:"route"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Numbers  string `json:"numbers"`
}

type smsResponse struct {
	Return    bool            `json:"return"`
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Message   json.RawMessage `json:"message"`
}

func NewSMSGateway(apiKey, endpoint string) *SMSGateway {
	return &SMSGateway{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *SMSGateway) Send(ctx context.Context, phone, message string) Result {
	number := NormalizePhone(phone)
	if number == "" {
		return failure("invalid phone number %q", phone)
	}

	body, err := json.Marshal(smsRequest{
		Route:    "q",
		Message:  message,
		Language: "english",
		Numbers:  number,
	})
	if err != nil {
		return failure("failed to encode sms request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure("failed to build sms request: %v", err)
	}
	req.Header.Set("authorization", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return failure("sms request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return failure("failed to read sms response: %v", err)
	}

	var parsed smsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure("unexpected sms response (%d): %s", resp.StatusCode, string(raw))
	}

	if parsed.Return || parsed.Status == "success" {
		return Result{Success: true, ID: parsed.RequestID}
	}
	return failure("sms gateway rejected message (%d): %s", resp.StatusCode, describe(parsed.Message))
}

func describe(msg json.RawMessage) string {
	if len(msg) == 0 {
		return "no message"
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(msg, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return fmt.Sprintf("%s", msg)
}
