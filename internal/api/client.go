// Package api is the REST client for the wirechat call endpoints. The
// signaling channel carries call events; this client carries the stateful
// operations that create, join and end calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wirechat/client/internal/domain"
)

type directCallRequest struct {
	ToUserID int64 `json:"to_user_id"`
}

type roomCallRequest struct {
	RoomID int64 `json:"room_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client calls the wirechat REST API with the session's bearer credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient creates an API client. baseURL is the API root without a
// trailing slash, e.g. "http://localhost:8080/api".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    http.DefaultClient,
		log:     logrus.WithField("component", "api"),
	}
}

// CreateDirectCall registers a 1-on-1 call with the backend and returns the
// created call record. The invite itself travels over the signaling channel.
func (c *Client) CreateDirectCall(ctx context.Context, toUserID int64) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := c.do(ctx, http.MethodPost, "/calls/direct", directCallRequest{ToUserID: toUserID}, &rec)
	if err != nil {
		return nil, fmt.Errorf("create direct call: %w", err)
	}
	return &rec, nil
}

// CreateRoomCall registers a room call with the backend.
func (c *Client) CreateRoomCall(ctx context.Context, roomID int64) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := c.do(ctx, http.MethodPost, "/calls/room", roomCallRequest{RoomID: roomID}, &rec)
	if err != nil {
		return nil, fmt.Errorf("create room call: %w", err)
	}
	return &rec, nil
}

// JoinCall obtains the media-session credentials for a call the backend has
// admitted us to.
func (c *Client) JoinCall(ctx context.Context, callID string) (*domain.JoinInfo, error) {
	var info domain.JoinInfo
	err := c.do(ctx, http.MethodGet, "/calls/"+callID+"/join", nil, &info)
	if err != nil {
		return nil, fmt.Errorf("join call %s: %w", callID, err)
	}
	return &info, nil
}

// EndCall tells the backend to end the call for everyone.
func (c *Client) EndCall(ctx context.Context, callID string) error {
	if err := c.do(ctx, http.MethodPut, "/calls/"+callID+"/end", nil, nil); err != nil {
		return fmt.Errorf("end call %s: %w", callID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
