package fallback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-duplex/core/events"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseSize = 32 << 20

// ChatResponse is the reply to an uploaded recording. Error replies keep
// the response text and point at a canned audio file instead.
type ChatResponse struct {
	AudioURL         string `json:"audioUrl,omitempty"`
	TranscribedText  string `json:"transcribedText"`
	ResponseText     string `json:"responseText"`
	Error            bool   `json:"error"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	FallbackAudioURL string `json:"fallbackAudioUrl,omitempty"`
}

// PlayableURL is the audio the user should hear for this reply, if any.
func (r ChatResponse) PlayableURL() string {
	if r.AudioURL != "" {
		return r.AudioURL
	}
	return r.FallbackAudioURL
}

// Client talks to the non-streaming endpoints used when the duplex channel
// is not available.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback base url: %w", err)
	} else if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid fallback base url %q", baseURL)
	}

	client := &Client{
		baseURL: parsed,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Chat uploads one recorded utterance as a WAV file and returns the
// assembled reply.
func (c *Client) Chat(ctx context.Context, sessionID string, recording []byte) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "fallback chat", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("recording.bytes", len(recording)),
	))
	defer span.End()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="recording.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err == nil {
		_, err = part.Write(recording)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "chat", Message: "failed to build upload", Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("agent", "chat", sessionID), body)
	if err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "chat", Err: err})
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	payload, err := c.do(req, "chat")
	if err != nil {
		return nil, c.fail(span, err)
	}

	var response ChatResponse
	if err := sonic.Unmarshal(payload, &response); err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "chat", Message: "malformed reply", Err: err})
	}
	if response.Error {
		return &response, c.fail(span, &UploadOrRequestError{Operation: "chat", Message: response.ErrorMessage})
	}
	return &response, nil
}

// History fetches the stored conversation for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]events.HistoryMessage, error) {
	ctx, span := tracer.Start(ctx, "fallback history", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("history", sessionID), nil)
	if err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "history", Err: err})
	}

	payload, err := c.do(req, "history")
	if err != nil {
		return nil, c.fail(span, err)
	}

	var entries []struct {
		Role  string   `json:"role"`
		Parts []string `json:"parts"`
	}
	if err := sonic.Unmarshal(payload, &entries); err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "history", Message: "malformed reply", Err: err})
	}

	messages := make([]events.HistoryMessage, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, events.HistoryMessage{Role: entry.Role, Parts: entry.Parts})
	}
	return messages, nil
}

// FetchAudio downloads a reply's audio container. Relative URLs resolve
// against the base url.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fallback audio")
	defer span.End()

	ref, err := url.Parse(audioURL)
	if err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "audio", Message: "invalid audio url", Err: err})
	}
	target := c.baseURL.ResolveReference(ref).String()
	span.SetAttributes(attribute.String("request.url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(span, &UploadOrRequestError{Operation: "audio", Err: err})
	}

	payload, err := c.do(req, "audio")
	if err != nil {
		return nil, c.fail(span, err)
	}
	return payload, nil
}

func (c *Client) endpoint(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadOrRequestError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UploadOrRequestError{Operation: operation, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestErr := &UploadOrRequestError{Operation: operation, StatusCode: resp.StatusCode}
		var reply struct {
			ErrorMessage string `json:"errorMessage"`
			Detail       string `json:"detail"`
		}
		if sonic.Unmarshal(payload, &reply) == nil {
			requestErr.Message = reply.ErrorMessage
			if requestErr.Message == "" {
				requestErr.Message = reply.Detail
			}
		}
		return nil, requestErr
	}

	return payload, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Warn("fallback request failed", "error", err)
	return err
}
