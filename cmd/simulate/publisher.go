package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"statushub/internal/events"
	"statushub/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	EVENTS_PATH     = "/api/events"
	TOKEN_LIFETIME  = 10 * time.Minute
	TOKEN_SUBJECT   = "simulate"
	REQUEST_TIMEOUT = 5 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// HTTPPublisher posts event envelopes to a running hub
type HTTPPublisher struct {
	client  *http.Client
	baseURL string
	secret  string
	origin  string
	log     logger.Logger
}

func NewHTTPPublisher(baseURL, secret string) *HTTPPublisher {
	return &HTTPPublisher{
		client:  &http.Client{Timeout: REQUEST_TIMEOUT},
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		origin:  "simulate-" + uuid.NewString(),
		log:     logger.New("simulate").File("publisher"),
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, event events.Event) error {
	log := p.log.Function("Publish")

	body, err := events.Encode(event, p.origin)
	if err != nil {
		return log.Err("failed to encode event", err, "kind", event.Kind())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+EVENTS_PATH, bytes.NewReader(body))
	if err != nil {
		return log.Err("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.secret != "" {
		token, err := SignControlToken(p.secret, time.Now())
		if err != nil {
			return log.Err("failed to sign control token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return log.Err("failed to post event", err, "kind", event.Kind())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return log.Error("hub rejected event",
			"kind", event.Kind(),
			"status", resp.StatusCode,
			"body", string(message),
		)
	}

	log.Debug("Published event", "kind", event.Kind())
	return nil
}

// SignControlToken issues the HS256 bearer token the control routes expect
func SignControlToken(secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   TOKEN_SUBJECT,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TOKEN_LIFETIME)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
