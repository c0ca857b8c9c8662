package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/explorerhq/webhook-relay/internal/proxy"
	"github.com/explorerhq/webhook-relay/internal/sanitize"
	"github.com/explorerhq/webhook-relay/internal/types"
)

// decodeError carries the HTTP status a decode failure maps to.
type decodeError struct {
	status  int
	message string
}

func (e *decodeError) Error() string { return e.message }

func badRequest(message string) *decodeError {
	return &decodeError{status: http.StatusBadRequest, message: message}
}

func payloadTooLarge(message string) *decodeError {
	return &decodeError{status: http.StatusRequestEntityTooLarge, message: message}
}

// decodedRequest is the normalized result of parsing an inbound request:
// the validated payload plus the re-serialized forward envelope body.
// ExtraHeaders in the payload are already filtered; they travel as headers
// upstream, never in the forward body.
type decodedRequest struct {
	payload            *types.ChatRequest
	forwardBody        []byte
	forwardContentType string
}

// decodeRequest parses either a JSON or multipart/form-data body into a
// normalized request. The body size is bounded before any parse work.
func decodeRequest(r *http.Request, maxBytes int64) (*decodedRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		return decodeMultipart(r, maxBytes)
	}
	return decodeJSON(r, maxBytes)
}

// rawChatRequest defers extraHeaders decoding so a non-mapping shape can be
// dropped without failing the whole parse.
type rawChatRequest struct {
	ConversationID string          `json:"conversationId"`
	Messages       []types.Message `json:"messages"`
	UserWebhook    string          `json:"userWebhook"`
	ExtraHeaders   json.RawMessage `json:"extraHeaders"`
	Stream         *bool           `json:"stream"`
}

// forwardChatRequest is the forward envelope body: the payload minus
// extraHeaders.
type forwardChatRequest struct {
	ConversationID string          `json:"conversationId"`
	Messages       []types.Message `json:"messages"`
	UserWebhook    string          `json:"userWebhook,omitempty"`
	Stream         *bool           `json:"stream,omitempty"`
}

func decodeJSON(r *http.Request, maxBytes int64) (*decodedRequest, error) {
	// Bound the read and reject before parsing; parse cost must not scale
	// past the limit.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, payloadTooLarge("Payload too large")
		}
		return nil, badRequest("Invalid payload")
	}
	if int64(len(body)) > maxBytes {
		return nil, payloadTooLarge("Payload too large")
	}

	var raw rawChatRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, badRequest("Invalid payload")
	}

	// extraHeaders must be a plain mapping; any other shape is dropped.
	var extraHeaders map[string]string
	if len(raw.ExtraHeaders) > 0 && string(raw.ExtraHeaders) != "null" {
		if err := json.Unmarshal(raw.ExtraHeaders, &extraHeaders); err != nil {
			extraHeaders = nil
		}
	}

	payload := &types.ChatRequest{
		ConversationID: sanitize.String(raw.ConversationID),
		Messages:       sanitizeMessages(raw.Messages),
		UserWebhook:    sanitize.String(raw.UserWebhook),
		ExtraHeaders:   proxy.FilterExtraHeaders(extraHeaders),
		Stream:         raw.Stream,
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	forwardBody, err := json.Marshal(forwardChatRequest{
		ConversationID: payload.ConversationID,
		Messages:       payload.Messages,
		UserWebhook:    payload.UserWebhook,
		Stream:         payload.Stream,
	})
	if err != nil {
		return nil, badRequest("Invalid payload")
	}

	return &decodedRequest{
		payload:            payload,
		forwardBody:        forwardBody,
		forwardContentType: "application/json",
	}, nil
}

func decodeMultipart(r *http.Request, maxBytes int64) (*decodedRequest, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, payloadTooLarge("Payload too large")
		}
		return nil, badRequest("Invalid form payload")
	}

	conversationID := sanitize.String(r.FormValue("conversationId"))
	messagesField, hasMessages := formValue(r, "messages")
	if conversationID == "" || !hasMessages {
		return nil, badRequest("Invalid form payload")
	}

	var messages []types.Message
	if err := json.Unmarshal([]byte(messagesField), &messages); err != nil {
		return nil, badRequest("Invalid payload")
	}

	// Malformed extraHeaders JSON is a hard error here, unlike the JSON
	// branch: the field is an explicitly typed string the client encoded.
	var extraHeaders map[string]string
	if field, ok := formValue(r, "extraHeaders"); ok {
		if err := json.Unmarshal([]byte(field), &extraHeaders); err != nil {
			return nil, badRequest("Invalid headers format")
		}
	}

	var stream *bool
	if field, ok := formValue(r, "stream"); ok {
		v := field == "true"
		stream = &v
	}

	payload := &types.ChatRequest{
		ConversationID: conversationID,
		Messages:       sanitizeMessages(messages),
		UserWebhook:    sanitize.String(r.FormValue("userWebhook")),
		ExtraHeaders:   proxy.FilterExtraHeaders(extraHeaders),
		Stream:         stream,
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	var audio multipart.File
	var audioHeader *multipart.FileHeader
	f, fh, err := r.FormFile("audio")
	switch {
	case err == nil:
		if fh.Size > maxBytes {
			f.Close()
			return nil, payloadTooLarge("Audio attachment too large")
		}
		audio, audioHeader = f, fh
		defer audio.Close()
	case errors.Is(err, http.ErrMissingFile):
		// no attachment
	default:
		return nil, badRequest("Invalid form payload")
	}

	forwardBody, forwardContentType, err := buildForwardForm(payload, audio, audioHeader)
	if err != nil {
		return nil, badRequest("Invalid form payload")
	}

	return &decodedRequest{
		payload:            payload,
		forwardBody:        forwardBody,
		forwardContentType: forwardContentType,
	}, nil
}

// buildForwardForm re-serializes the multipart forward envelope:
// extraHeaders are omitted (they travel as headers), the audio attachment
// keeps its field name and filename.
func buildForwardForm(payload *types.ChatRequest, audio multipart.File, audioHeader *multipart.FileHeader) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("conversationId", payload.ConversationID); err != nil {
		return nil, "", err
	}
	messagesJSON, err := json.Marshal(payload.Messages)
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("messages", string(messagesJSON)); err != nil {
		return nil, "", err
	}
	if payload.Stream != nil {
		if err := mw.WriteField("stream", strconv.FormatBool(*payload.Stream)); err != nil {
			return nil, "", err
		}
	}
	if payload.UserWebhook != "" {
		if err := mw.WriteField("userWebhook", payload.UserWebhook); err != nil {
			return nil, "", err
		}
	}
	if audio != nil {
		part, err := mw.CreateFormFile("audio", audioHeader.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, audio); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func sanitizeMessages(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, m := range messages {
		out[i] = types.Message{
			ID:      sanitize.String(m.ID),
			Role:    m.Role,
			Content: sanitize.String(m.Content),
		}
	}
	return out
}

func validatePayload(p *types.ChatRequest) error {
	if p.ConversationID == "" {
		return badRequest("conversationId is required")
	}
	if len(p.Messages) == 0 {
		return badRequest("messages are required")
	}
	for _, m := range p.Messages {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			return badRequest(fmt.Sprintf("unsupported message role: %s", m.Role))
		}
	}
	return nil
}

// formValue distinguishes an absent field from an empty one.
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
