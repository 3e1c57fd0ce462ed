package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DriverHTTP = "http"

const defaultHTTPTimeout = 10 * time.Second

type httpSendRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Category string `json:"category,omitempty"`
}

// HTTPTransport posts messages to an HTTP mail API endpoint.
type HTTPTransport struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPTransport(endpoint string) (*HTTPTransport, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewHTTPTransportWithClient(endpoint, client)
}

func NewHTTPTransportWithClient(endpoint string, client *resty.Client) (*HTTPTransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mail api endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mail api endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPTransport{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (t *HTTPTransport) Driver() string { return DriverHTTP }

func (t *HTTPTransport) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("http transport is not initialized")
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return nil, &TransportError{Message: "recipient is required"}
	}

	reqBody := httpSendRequest{
		To:       msg.Recipient,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Category: msg.Category,
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(t.endpoint)
	if err != nil {
		return nil, &TransportError{
			Message:   "mail api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &TransportError{
			Message:   "mail api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{MessageID: transportMessageID(response)}, nil
	}

	return nil, &TransportError{
		StatusCode: statusCode,
		Message:    sendErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sendErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("mail api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func transportMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
