package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MutationResponse is the success/failure envelope every mutation endpoint
// returns.
type MutationResponse struct {
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	RouteID   string     `json:"routeId,omitempty"`
	Territory *Territory `json:"territory,omitempty"`
}

// Gateway is the backend collaborator handling user-initiated mutations.
// The core treats these as opaque remote calls it awaits and reconciles
// against; tests substitute fakes.
type Gateway interface {
	StartRoute(ctx context.Context) (*MutationResponse, error)
	AddCoordinates(ctx context.Context, routeID string, coords []Coordinate) (*MutationResponse, error)
	CompleteRoute(ctx context.Context, routeID string) (*MutationResponse, error)
	ClaimTerritoryFromRoute(ctx context.Context, route Route) (*MutationResponse, error)
}

// HTTPGateway talks JSON to the backend mutation endpoints with a bearer
// credential.
type HTTPGateway struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPGateway builds a gateway for the configured backend.
func NewHTTPGateway(cfg Config) *HTTPGateway {
	return &HTTPGateway{
		base:   strings.TrimRight(cfg.GatewayURL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPGateway) StartRoute(ctx context.Context) (*MutationResponse, error) {
	return g.post(ctx, "/routes/start", struct{}{})
}

func (g *HTTPGateway) AddCoordinates(ctx context.Context, routeID string, coords []Coordinate) (*MutationResponse, error) {
	path := fmt.Sprintf("/routes/%s/coordinates", url.PathEscape(routeID))
	return g.post(ctx, path, map[string]any{"coordinates": coords})
}

func (g *HTTPGateway) CompleteRoute(ctx context.Context, routeID string) (*MutationResponse, error) {
	path := fmt.Sprintf("/routes/%s/complete", url.PathEscape(routeID))
	return g.post(ctx, path, struct{}{})
}

func (g *HTTPGateway) ClaimTerritoryFromRoute(ctx context.Context, route Route) (*MutationResponse, error) {
	path := fmt.Sprintf("/routes/%s/claim", url.PathEscape(route.ID))
	return g.post(ctx, path, route)
}

func (g *HTTPGateway) post(ctx context.Context, path string, body any) (*MutationResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out MutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return &out, nil
}
