package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var actions = map[string]string{
	"sweep":   "/api/v1/admin/sweep",
	"refresh": "/api/v1/admin/roster/refresh",
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	action := flag.String("action", "sweep", "Admin action: sweep or refresh")
	secretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	flag.Parse()

	path, ok := actions[*action]
	if !ok {
		fmt.Printf("Unknown action %q (want sweep or refresh)\n", *action)
		os.Exit(2)
	}

	adminSecret := strings.TrimSpace(*secretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	url := strings.TrimRight(*baseURL, "/") + path
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	fmt.Printf("Response Status: %s\n%s\n", resp.Status, body)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
