package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Sender delivers one data payload to a set of device tokens and reports
// which tokens the provider rejected for good.
type Sender interface {
	Send(ctx context.Context, tokens []string, data map[string]string) (invalid []string, err error)
}

const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMSender sends multicast data messages through the FCM HTTP API.
type FCMSender struct {
	client    *http.Client
	endpoint  string
	serverKey string
}

// NewFCMSender builds an FCM sender, or a noop sender when no server key is
// configured.
func NewFCMSender(serverKey string) Sender {
	if serverKey == "" {
		log.Printf("push sender disabled, using noop: empty fcm server key")
		return noopSender{}
	}
	return &FCMSender{
		client:    &http.Client{Timeout: 10 * time.Second},
		endpoint:  fcmEndpoint,
		serverKey: serverKey,
	}
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Priority        string            `json:"priority"`
	Data            map[string]string `json:"data"`
}

type fcmResponse struct {
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Token errors that mean the token will never work again.
var permanentTokenErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, data map[string]string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Priority:        "high",
		Data:            data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fcm send: unexpected status %d", resp.StatusCode)
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fcm send: decode response: %w", err)
	}

	var invalid []string
	for i, result := range parsed.Results {
		if i < len(tokens) && permanentTokenErrors[result.Error] {
			invalid = append(invalid, tokens[i])
		}
	}
	return invalid, nil
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, tokens []string, data map[string]string) ([]string, error) {
	log.Printf("push noop send tokens=%d chat_id=%s", len(tokens), data["chatId"])
	return nil, nil
}
