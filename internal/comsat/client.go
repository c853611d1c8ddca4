// Package comsat talks to the satellite relays that bridge two instances
// which cannot reach each other directly.
package comsat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/utils"
)

const (
	pathMappingAdd    = "/api/v1/mapping/add"
	pathMappingRemove = "/api/v1/mapping/remove"

	// Mapping defaults sent with every lease.
	defaultMaxConnections   = 60
	defaultHeartbeatAbsence = 200000
)

// errUnreadableReply marks a 200 answer whose body could not be decoded.
var errUnreadableReply = errors.New("unreadable satellite reply")

// PortPair is the pair of ports a satellite opened for one mapping.
// Port1 serves the publishing side, Port2 the destination side.
type PortPair struct {
	Port1 int `json:"port1"`
	Port2 int `json:"port2"`
}

type mapping struct {
	Type                      string `json:"type"`
	MaxConnections            int    `json:"maxconnections"`
	HeartbeatAbsenceThreshold int    `json:"heartbeatabsencethreshold"`
}

type addRequest struct {
	Mapping mapping `json:"mapping"`
}

type removeRequest struct {
	Port1 int `json:"port1"`
	Port2 int `json:"port2"`
}

type reply struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errormessage"`
	Port1        int    `json:"port1"`
	Port2        int    `json:"port2"`
}

// Client calls the satellite mapping API. Calls carry a timeout and are
// never retried; the caller owns compensation.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
	observe func(op string, took time.Duration, err error)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers a callback invoked after every satellite call.
func WithObserver(fn func(op string, took time.Duration, err error)) Option {
	return func(c *Client) { c.observe = fn }
}

// NewClient builds a satellite client with a per-call timeout.
func NewClient(timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				TLSHandshakeTimeout: timeout,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		logger:  log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OpenPort leases a port pair on the satellite.
func (c *Client) OpenPort(ctx context.Context, sat domain.Satellite, public bool) (PortPair, error) {
	kind := "private"
	if public {
		kind = "public"
	}
	body := addRequest{Mapping: mapping{
		Type:                      kind,
		MaxConnections:            defaultMaxConnections,
		HeartbeatAbsenceThreshold: defaultHeartbeatAbsence,
	}}

	r, err := c.call(ctx, "open", sat, pathMappingAdd, body)
	if err != nil {
		if errors.Is(err, errUnreadableReply) {
			c.logger.Error("satellite accepted an open but its reply was unreadable, mapping may be leaked",
				logger.String("satellite_id", sat.ID),
				logger.Error(err))
		}
		return PortPair{}, err
	}
	if r.Port1 <= 0 || r.Port2 <= 0 {
		err := fmt.Errorf("satellite %s returned invalid ports %d/%d", sat.ID, r.Port1, r.Port2)
		c.abandon(ctx, sat, PortPair{Port1: r.Port1, Port2: r.Port2}, err)
		return PortPair{}, err
	}

	c.logger.Debug("satellite port opened",
		logger.String("satellite_id", sat.ID),
		logger.Int("port1", r.Port1),
		logger.Int("port2", r.Port2))
	return PortPair{Port1: r.Port1, Port2: r.Port2}, nil
}

// abandon closes whatever part of a rejected lease the satellite reported.
// A pair with no usable port cannot be closed and is only logged.
func (c *Client) abandon(ctx context.Context, sat domain.Satellite, ports PortPair, cause error) {
	fields := []logger.Field{
		logger.String("satellite_id", sat.ID),
		logger.Int("port1", ports.Port1),
		logger.Int("port2", ports.Port2),
		logger.Error(cause),
	}
	if ports.Port1 <= 0 && ports.Port2 <= 0 {
		c.logger.Error("satellite lease unusable and cannot be closed, mapping may be leaked", fields...)
		return
	}
	if err := c.ClosePort(context.WithoutCancel(ctx), sat, ports); err != nil {
		c.logger.Error("failed to close unusable satellite lease, mapping leaked",
			append(fields, logger.String("close_error", err.Error()))...)
		return
	}
	c.logger.Warn("closed unusable satellite lease", fields...)
}

// ClosePort releases a previously leased port pair.
func (c *Client) ClosePort(ctx context.Context, sat domain.Satellite, ports PortPair) error {
	if _, err := c.call(ctx, "close", sat, pathMappingRemove, removeRequest(ports)); err != nil {
		return err
	}
	c.logger.Debug("satellite port closed",
		logger.String("satellite_id", sat.ID),
		logger.Int("port1", ports.Port1),
		logger.Int("port2", ports.Port2))
	return nil
}

func (c *Client) call(ctx context.Context, op string, sat domain.Satellite, path string, body any) (r reply, err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(op, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return r, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	url := strings.TrimRight(sat.APIURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return r, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return r, fmt.Errorf("satellite %s unreachable: %w", sat.ID, err)
	}
	defer utils.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return r, fmt.Errorf("satellite %s %s returned %d: %s", sat.ID, op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return r, fmt.Errorf("%w for %s: %w", errUnreadableReply, op, err)
	}
	if r.Status != "" && r.Status != "ok" {
		return r, fmt.Errorf("satellite %s rejected %s: %s", sat.ID, op, r.ErrorMessage)
	}
	return r, nil
}
