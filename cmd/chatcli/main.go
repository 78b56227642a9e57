// chatcli submits one turn to a running server and renders the stream to the
// terminal. Useful for poking at a deployment without a browser.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"brightwell/internal/domain/models/chat"
	"brightwell/internal/stream"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL = flag.String("url", envOr("CHAT_URL", "http://localhost:8080"), "server base URL")
		token   = flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token")
		chatID  = flag.String("chat", "", "conversation id (default: new conversation)")
		mode    = flag.String("mode", "", "assistant mode id")
		verbose = flag.Bool("v", false, "print raw events")
	)
	flag.Parse()

	message := flag.Arg(0)
	if message == "" {
		log.Fatal("usage: chatcli [flags] \"your message\"")
	}

	id := *chatID
	if id == "" {
		id = uuid.New().String()
	}

	body, err := json.Marshal(map[string]any{
		"id":                id,
		"selectedChatModel": *mode,
		"messages": []map[string]any{{
			"role":  chat.RoleUser,
			"parts": []chat.Part{chat.TextPart(message)},
		}},
	})
	if err != nil {
		log.Fatalf("encode request: %v", err)
	}

	req, err := http.NewRequest("POST", *baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		log.Fatalf("server returned %s: %s", resp.Status, detail)
	}

	red := stream.NewReducer()
	err = stream.Consume(resp.Body, red, func(kind string, data json.RawMessage) {
		if *verbose {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", kind, data)
			return
		}
		switch kind {
		case stream.KindTextDelta:
			var ev stream.TextDeltaEvent
			if json.Unmarshal(data, &ev) == nil {
				fmt.Print(ev.Delta)
			}
		case stream.KindToolCallStart:
			var ev stream.ToolCallStartEvent
			if json.Unmarshal(data, &ev) == nil {
				fmt.Fprintf(os.Stderr, "\n[tool: %s]\n", ev.ToolName)
			}
		case stream.KindData:
			var ev stream.DataEvent
			if json.Unmarshal(data, &ev) == nil && ev.Payload["url"] != nil {
				fmt.Fprintf(os.Stderr, "[%s: %v]\n", ev.Name, ev.Payload["url"])
			}
		}
	})
	if err != nil {
		log.Fatalf("stream failed: %v", err)
	}

	fmt.Println()
	if red.Err != "" {
		fmt.Fprintf(os.Stderr, "turn failed: %s\n", red.Err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "chat %s finished (%s)\n", id, red.FinishReason)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
