// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// runStatsCLI queries a running daemon for pool and cache statistics.
func runStatsCLI(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8780", "base URL of the running daemon")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out := struct {
		Pools json.RawMessage `json:"pools"`
		Cache json.RawMessage `json:"cache"`
	}{}

	var err error
	if out.Pools, err = fetchJSON(ctx, *addr+"/api/v1/pools"); err != nil {
		fmt.Fprintf(os.Stderr, "pools query failed: %v\n", err)
		return 1
	}
	if out.Cache, err = fetchJSON(ctx, *addr+"/api/v1/cache"); err != nil {
		fmt.Fprintf(os.Stderr, "cache query failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		return 1
	}
	return 0
}

func fetchJSON(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", resp.Status, body)
	}
	return body, nil
}
