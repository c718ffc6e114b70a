// Package client is a typed HTTP client for the room booking API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/npezzotti/go-roombook/internal/types"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned for every non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http: httpClient,
		log:  logger,
	}
}

func (c *Client) SetAuthToken(token string) {
	c.http.SetAuthToken(token)
}

// Login exchanges credentials for a session token and uses it for every
// subsequent request.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp types.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", nil, types.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	c.SetAuthToken(resp.Token)
	return resp.Token, nil
}

// ListRooms returns every room, or only the rooms whose availability flag
// equals *available when it is non-nil.
func (c *Client) ListRooms(ctx context.Context, available *int) ([]types.Room, error) {
	req := c.http.R()
	if available != nil {
		req.SetQueryParam("available", strconv.Itoa(*available))
	}

	var rooms []types.Room
	if err := c.send(ctx, req, http.MethodGet, "/rooms/all", &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return rooms, nil
}

func (c *Client) GetRoom(ctx context.Context, roomNumber string) (types.Room, error) {
	var room types.Room
	err := c.do(ctx, http.MethodGet, "/rooms/{room_number}", pathParams(roomNumber), nil, &room)
	if err != nil {
		return types.Room{}, fmt.Errorf("get room %s: %w", roomNumber, err)
	}

	return room, nil
}

func (c *Client) UpdateRoom(ctx context.Context, roomNumber string, details types.UpdateRoomRequest) error {
	var resp types.MessageResponse
	if err := c.do(ctx, http.MethodPut, "/rooms/{room_number}", pathParams(roomNumber), details, &resp); err != nil {
		return fmt.Errorf("update room %s: %w", roomNumber, err)
	}

	return nil
}

func (c *Client) MarkOccupied(ctx context.Context, roomNumber string) error {
	var resp types.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/{room_number}/make-occupied", pathParams(roomNumber), nil, &resp); err != nil {
		return fmt.Errorf("mark room %s occupied: %w", roomNumber, err)
	}

	return nil
}

func (c *Client) MarkAvailable(ctx context.Context, roomNumber string) error {
	var resp types.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/{room_number}/make-available", pathParams(roomNumber), nil, &resp); err != nil {
		return fmt.Errorf("mark room %s available: %w", roomNumber, err)
	}

	return nil
}

// Book updates the room details and marks the room occupied in a single
// server-side transaction. An occupied room yields a 409 StatusError.
func (c *Client) Book(ctx context.Context, roomNumber string, details types.UpdateRoomRequest) error {
	var resp types.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/{room_number}/book", pathParams(roomNumber), details, &resp); err != nil {
		return fmt.Errorf("book room %s: %w", roomNumber, err)
	}

	return nil
}

func pathParams(roomNumber string) map[string]string {
	return map[string]string{"room_number": roomNumber}
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, result any) error {
	req := c.http.R()
	if params != nil {
		req.SetPathParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}

	return c.send(ctx, req, method, path, result)
}

func (c *Client) send(ctx context.Context, req *resty.Request, method, path string, result any) error {
	var apiErr types.ErrorResponse
	resp, err := req.
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr).
		Execute(method, path)
	if err != nil {
		c.log.Error("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}

	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", apiErr.Error),
		)
		return &StatusError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}

	return nil
}
