// Command ping probes the readiness endpoint and exits non-zero when the
// server or one of its dependencies is down.
//
// Intended for Docker HEALTHCHECK:
//
//	HEALTHCHECK CMD ["/ping"]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort    = 8080
	healthEndpoint = "/healthz"
	statusOK       = "ok"

	// exit codes
	codeRequestFailed = 2
	codeBadStatus     = 3
	codeDecodeError   = 4
	codeDown          = 5
)

// health mirrors the readiness body: {"status":"ok"} or
// {"status":"down","error":"mongo: ..."}.
type health struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func main() {
	url := flag.String("url", "", "Readiness URL, defaults to localhost on APP_PORT")
	timeout := flag.Duration("timeout", time.Second, "Request timeout")
	flag.Parse()

	target := *url
	if target == "" {
		target = fmt.Sprintf("http://localhost:%d%s", detectPort(), healthEndpoint)
	}

	code, msg := probe(&http.Client{Timeout: *timeout}, target)
	log.Print(msg)
	os.Exit(code)
}

// probe returns the exit code and a one-line report for target.
func probe(client *http.Client, target string) (int, string) {
	resp, err := client.Get(target)
	if err != nil {
		return codeRequestFailed, fmt.Sprintf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil && !errors.Is(err, io.EOF) {
		return codeDecodeError, fmt.Sprintf("decode error: %v", err)
	}

	switch {
	case h.Status != "" && h.Status != statusOK:
		return codeDown, fmt.Sprintf("service reported %s: %s", h.Status, h.Error)
	case resp.StatusCode != http.StatusOK:
		return codeBadStatus, fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)
	}
	return 0, "service healthy at " + target
}

// detectPort parses APP_PORT and falls back to defaultPort.
func detectPort() int {
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			return p
		}
	}
	return defaultPort
}
