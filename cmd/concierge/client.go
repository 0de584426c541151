package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kalambet/concierge/internal/config"
)

// errSessionGone means the server no longer knows the saved session, usually
// because it restarted or the session idled out.
var errSessionGone = errors.New("session not found on server")

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// sessionPath stores the id of the session the CLI is talking in.
	sessionPath string
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	return &apiClient{
		baseURL:     fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:       token,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		sessionPath: filepath.Join(cfg.Storage.DataDir, "cli-session"),
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is concierge running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) patch(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// decodeJSON decodes a successful response into v. Error responses become Go
// errors carrying the server's message when it sent one.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *apiClient) loadSession() (string, error) {
	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", os.ErrNotExist
	}
	return id, nil
}

func (c *apiClient) saveSession(id string) error {
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.sessionPath, []byte(id), 0o600)
}

// startSession creates a session exploring location (the server default when
// empty) and remembers it for later commands.
func (c *apiClient) startSession(ctx context.Context, location string) (sessionView, error) {
	var body any
	if location != "" {
		body = map[string]string{"location": location}
	}
	resp, err := c.post(ctx, "/sessions", body)
	if err != nil {
		return sessionView{}, err
	}
	var s sessionView
	if err := decodeJSON(resp, &s); err != nil {
		return sessionView{}, err
	}
	if err := c.saveSession(s.ID); err != nil {
		return sessionView{}, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

// sessionDo runs a request against the saved session, starting a fresh one
// when there is none or the server forgot it.
func (c *apiClient) sessionDo(ctx context.Context, method, suffix string, body any, v any) error {
	id, err := c.loadSession()
	if err != nil {
		s, err := c.startSession(ctx, "")
		if err != nil {
			return err
		}
		printStep("Started a new session in %s", s.Location)
		id = s.ID
	}

	err = c.sessionRequest(ctx, id, method, suffix, body, v)
	if !errors.Is(err, errSessionGone) {
		return err
	}

	s, err := c.startSession(ctx, "")
	if err != nil {
		return err
	}
	printWarning("Previous session expired; started a new one in %s", s.Location)
	return c.sessionRequest(ctx, s.ID, method, suffix, body, v)
}

func (c *apiClient) sessionRequest(ctx context.Context, id, method, suffix string, body any, v any) error {
	resp, err := c.do(ctx, method, "/sessions/"+id+suffix, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(data), "session not found") {
			return errSessionGone
		}
		resp.Body = io.NopCloser(bytes.NewReader(data))
	}
	return decodeJSON(resp, v)
}
