// Package main provides a container probe helper for the reporting
// operator. It issues one GET against the operator's operational endpoint
// and exits 0 on a 2xx response, 1 otherwise, so it can back Kubernetes
// exec probes in images without a shell or curl.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func main() {
	url := defaultURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	} else if v := os.Getenv("LEDGER_HEALTHCHECK_URL"); v != "" {
		url = v
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck %s: %v\n", url, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "healthcheck %s: status %d\n", url, resp.StatusCode)
		os.Exit(1)
	}
}
