package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/handler"
	"storefront/internal/model"
)

// client issues requests against the storefront and reports them on the
// command's output.
type client struct {
	opts *RootOptions
	out  io.Writer
}

func newClient(opts *RootOptions, cmd *cobra.Command) *client {
	return &client{opts: opts, out: cmd.OutOrStdout()}
}

// do sends body as JSON and decodes a 2xx response into result. Notices in
// the response header are printed whatever the status.
func (c *client) do(cmd *cobra.Command, method, path string, body, result any) error {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := strings.TrimSuffix(c.opts.Server, "/") + path
	req, err := http.NewRequestWithContext(cmd.Context(), method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.opts.Verbose {
		c.printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := c.opts.HTTPClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if c.opts.Verbose {
		c.printResponse(resp.StatusCode, respBody, duration)
	}
	c.printNotices(resp.Header.Values(handler.NoticesHeader))

	if resp.StatusCode >= 400 {
		return responseError(resp.StatusCode, respBody)
	}

	if c.opts.Format == "json" {
		c.printJSON(respBody, "")
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// responseError turns an error body into a readable error.
func responseError(status int, body []byte) error {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("%s (HTTP %d, %s)", e.Error.Message, status, e.Error.Code)
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

func (c *client) printNotices(values []string) {
	if c.opts.Quiet || len(values) == 0 {
		return
	}
	notices, err := handler.DecodeNotices(values)
	if err != nil {
		c.printWarning("unreadable notices: %v", err)
		return
	}
	for _, n := range notices {
		switch n.Level {
		case model.NoticeError:
			c.printError("%s", n.Message)
		case model.NoticeSuccess:
			c.printSuccess("%s", n.Message)
		default:
			fmt.Fprintf(c.out, "%s  ℹ %s%s\n", colorGray, n.Message, colorReset)
		}
	}
}
