package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	global := flag.NewFlagSet("storybind", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	switch cmd {
	case "fetch":
		handleFetch(ctx, *baseURL, args[1:])
	case "history":
		handleHistory(ctx, *baseURL, sub, args[2:])
	case "watch":
		handleWatch(*baseURL, args[1:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleFetch(ctx context.Context, baseURL string, args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	id := fs.Int64("id", 0, "story or part id")
	format := fs.String("format", "epub", "epub|pdf|epub_and_pdf|both")
	mode := fs.String("mode", "story", "story|part")
	images := fs.Bool("images", false, "embed in-chapter images")
	username := fs.String("username", "", "provider username (for mature stories)")
	password := fs.String("password", "", "provider password")
	out := fs.String("out", "", "output path (defaults to server-suggested filename)")
	_ = fs.Parse(args)

	if *id == 0 {
		log.Fatal("id is required")
	}

	u, err := url.Parse(fmt.Sprintf("%s/download/%d", baseURL, *id))
	if err != nil {
		log.Fatalf("invalid base url: %v", err)
	}
	qv := u.Query()
	qv.Set("format", *format)
	qv.Set("mode", *mode)
	if *images {
		qv.Set("download_images", "true")
	}
	if *username != "" {
		qv.Set("username", *username)
		qv.Set("password", *password)
	}
	u.RawQuery = qv.Encode()

	// Downloads are throttled server-side, so no client timeout here.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("fetch failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	path := *out
	if path == "" {
		path = suggestedFilename(resp.Header.Get("Content-Disposition"))
	}
	if path == "" {
		path = fmt.Sprintf("story_%d", *id)
	}

	file, err := os.Create(path)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	log.Printf("✅ saved %d bytes to %s", n, path)
}

func handleHistory(ctx context.Context, baseURL, sub string, args []string) {
	client := &http.Client{Timeout: 15 * time.Second}
	switch sub {
	case "list":
		fs := flag.NewFlagSet("history list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/history")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, u.String(), &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "stats":
		var resp map[string]any
		if err := doJSON(ctx, client, baseURL+"/history/stats", &resp); err != nil {
			log.Fatalf("stats failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: storybind history <list|stats>")
	}
}

func handleWatch(baseURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
	_ = fs.Parse(args)

	endpoint := *wsURL
	if endpoint == "" {
		var err error
		endpoint, err = websocketURL(baseURL, "/ws")
		if err != nil {
			log.Fatalf("ws url: %v", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		log.Fatalf("watch failed: %v", err)
	}
	defer conn.Close()

	log.Printf("[watch] connected to %s", endpoint)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("watch disconnected: %v", err)
		}
		fmt.Println(strings.TrimSpace(string(msg)))
	}
}

func doJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s failed: %s", endpoint, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func suggestedFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("storybind <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  fetch -id <story-id> [-format epub|pdf|epub_and_pdf|both] [-mode story|part] [-images]")
	fmt.Println("  history list|stats")
	fmt.Println("  watch")
}
