// Package sandbox wraps the remote code-execution service. It owns the
// content-addressable result cache and translates remote failures into the
// error codes callers are allowed to see.
package sandbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gradex/internal/common/cache"
	"gradex/internal/exec/model"
	appErr "gradex/pkg/errors"
	"gradex/pkg/utils/logger"
)

const (
	resultKeyPrefix  = "exec:result:"
	defaultVersion   = "latest"
	defaultResultTTL = 24 * time.Hour
)

// Config holds the connection settings for the remote execution service.
type Config struct {
	// BaseURL is the base URL of the execution service, e.g. "https://emkc.org/api/v2/piston".
	BaseURL string `yaml:"baseURL"`
	// Version pins a language version; empty requests the latest available.
	Version   string        `yaml:"version"`
	Timeout   time.Duration `yaml:"timeout"`
	ResultTTL time.Duration `yaml:"resultTTL"`
}

// Client calls the remote execution service over HTTP.
type Client struct {
	baseURL   string
	version   string
	resultTTL time.Duration
	http      *http.Client
	cache     cache.Cache
}

// NewClient creates a sandbox client. cacheClient may be nil, in which case
// every call goes to the remote service.
func NewClient(cfg Config, cacheClient cache.Cache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	version := cfg.Version
	if version == "" {
		version = defaultVersion
	}
	resultTTL := cfg.ResultTTL
	if resultTTL <= 0 {
		resultTTL = defaultResultTTL
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		version:   version,
		resultTTL: resultTTL,
		http:      &http.Client{Timeout: timeout},
		cache:     cacheClient,
	}
}

// Fingerprint computes the cache key for an execution request. Fields are
// length-prefixed so that distinct (language, source, stdin) triples can
// never collide on a boundary shift.
func Fingerprint(req model.ExecutionRequest) string {
	h := sha256.New()
	for _, part := range []string{req.Language, req.SourceCode, req.Stdin} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
	Stdin    string        `json:"stdin"`
}

type executeFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Run struct {
		Stdout string  `json:"stdout"`
		Stderr string  `json:"stderr"`
		Output string  `json:"output"`
		Code   *int    `json:"code"`
		Signal *string `json:"signal"`
	} `json:"run"`
}

// Execute runs the given request against the remote service. Identical
// requests are served from the cache without a network call. Fails with
// RateLimited when the remote reports throttling, SandboxUnavailable for
// any other transport or protocol failure.
func (c *Client) Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
	key := resultKeyPrefix + Fingerprint(req)

	if c.cache != nil {
		if val, err := c.cache.Get(ctx, key); err == nil && val != "" {
			var cached model.ExecutionResult
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	result, err := c.callRemote(ctx, req)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := c.cache.Set(ctx, key, string(data), c.resultTTL); err != nil {
				logger.Warn(ctx, "store execution result failed", zap.Error(err))
			}
		}
	}
	return result, nil
}

func (c *Client) callRemote(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{
		Language: req.Language,
		Version:  c.version,
		Files:    []executeFile{{Content: req.SourceCode}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return model.ExecutionResult{}, appErr.Wrapf(err, appErr.SandboxUnavailable, "marshal execute request failed")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return model.ExecutionResult{}, appErr.Wrapf(err, appErr.SandboxUnavailable, "build execute request failed")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Warn(ctx, "sandbox request failed", zap.Error(err))
		return model.ExecutionResult{}, appErr.New(appErr.SandboxUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.ExecutionResult{}, appErr.New(appErr.RateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn(ctx, "sandbox returned non-2xx", zap.Int("status", resp.StatusCode))
		return model.ExecutionResult{}, appErr.New(appErr.SandboxUnavailable)
	}

	var decoded executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.Warn(ctx, "decode sandbox response failed", zap.Error(err))
		return model.ExecutionResult{}, appErr.New(appErr.SandboxUnavailable)
	}

	return model.ExecutionResult{
		Stdout:   decoded.Run.Stdout,
		Stderr:   decoded.Run.Stderr,
		Output:   decoded.Run.Output,
		ExitCode: decoded.Run.Code,
		Signal:   decoded.Run.Signal,
	}, nil
}
