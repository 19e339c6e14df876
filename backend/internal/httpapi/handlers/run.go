package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Runner 把用户提交的 traceback 交给 producer，由它开始生成修复过程
type Runner interface {
	Run(ctx context.Context, traceback string) error
}

type HTTPRunner struct {
	url    string
	client *http.Client
}

func NewHTTPRunner(url string, timeout time.Duration) *HTTPRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRunner{url: strings.TrimRight(url, "/"), client: &http.Client{Timeout: timeout}}
}

func (r *HTTPRunner) Run(ctx context.Context, traceback string) error {
	body, err := json.Marshal(map[string]string{"traceback": traceback})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("producer run: status %d", resp.StatusCode)
	}
	return nil
}
