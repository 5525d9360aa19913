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

	"github.com/urfave/cli/v3"
)

const (
	transportUDS  = "uds"
	transportHTTP = "http"

	defaultServer = "http://127.0.0.1:8080"
	defaultSocket = "/tmp/cmdb.sock"
)

type cliConfig struct {
	Transport string `json:"transport"`
	Server    string `json:"server"`
	Socket    string `json:"socket"`
}

type apiClient struct {
	httpClient *http.Client
	server     string
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func newAPIClient(server string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		server:     strings.TrimRight(server, "/"),
	}
}

// request sends in as JSON and unwraps the data member of the response
// envelope into out.
func (c *apiClient) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode >= 400 {
		msg := env.Error
		for _, d := range env.Details {
			msg += "; " + d.Message
		}
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return json.Unmarshal(payload, out)
	}
	return json.Unmarshal(env.Data, out)
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cmdb", "config.json"), nil
}

// loadConfig reads the saved client settings and lets the global flags
// override them.
func loadConfig(c *cli.Command) (cliConfig, error) {
	cfg := cliConfig{Transport: transportUDS, Server: defaultServer, Socket: defaultSocket}

	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cliConfig{}, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return cliConfig{}, err
	}

	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("socket") {
		cfg.Socket = c.String("socket")
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = transportUDS
	}
	if cfg.Transport != transportUDS && cfg.Transport != transportHTTP {
		return cliConfig{}, fmt.Errorf("unknown transport %q (want uds or http)", cfg.Transport)
	}
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.Socket == "" {
		cfg.Socket = defaultSocket
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
