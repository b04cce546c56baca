// rag-chat is an interactive terminal client for the RAG chatbot API. It
// keeps a conversation thread open and supports uploading documents from
// URLs and local files.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	UserID   string `json:"user_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type conversationList struct {
	Conversations []struct {
		ConversationID     string    `json:"conversation_id"`
		Title              string    `json:"title"`
		UpdatedAt          time.Time `json:"updated_at"`
		MessageCount       int       `json:"message_count"`
		LastMessagePreview string    `json:"last_message_preview"`
	} `json:"conversations"`
}

type apiError struct {
	Detail string `json:"detail"`
}

type client struct {
	host   string
	userID string
	http   *http.Client
}

func main() {
	host := flag.String("host", envOr("API_URL", "http://localhost:8000"), "API base URL")
	user := flag.String("user", envOr("TEST_USER_ID", "test-user-123"), "user ID to chat as")
	flag.Parse()

	c := &client{
		host:   strings.TrimRight(*host, "/"),
		userID: *user,
		http:   &http.Client{Timeout: 120 * time.Second},
	}

	threadID, greeting, err := c.newConversation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start conversation: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s as %s\n", c.host, c.userID)
	fmt.Printf("Assistant: %s\n", greeting)
	fmt.Println("Commands: /new, /url <url> [title], /file <path>, /list, /exit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/exit":
			return
		case line == "/new":
			threadID, greeting, err = c.newConversation()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Printf("Assistant: %s\n", greeting)
		case line == "/list":
			c.listConversations()
		case strings.HasPrefix(line, "/url "):
			c.uploadURL(strings.TrimSpace(strings.TrimPrefix(line, "/url ")))
		case strings.HasPrefix(line, "/file "):
			c.uploadFile(strings.TrimSpace(strings.TrimPrefix(line, "/file ")))
		case strings.HasPrefix(line, "/"):
			fmt.Println("Unknown command. Commands: /new, /url <url> [title], /file <path>, /list, /exit")
		default:
			reply, newThread, err := c.chat(line, threadID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			threadID = newThread
			fmt.Printf("Assistant: %s\n", reply)
		}
	}
}

func (c *client) newConversation() (threadID, greeting string, err error) {
	endpoint := fmt.Sprintf("%s/new-conversation?user_id=%s", c.host, url.QueryEscape(c.userID))
	resp, err := c.http.Post(endpoint, "application/json", nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", "", err
	}
	return out.ThreadID, out.Response, nil
}

func (c *client) chat(message, threadID string) (reply, newThreadID string, err error) {
	body, _ := json.Marshal(chatRequest{Message: message, ThreadID: threadID, UserID: c.userID})
	resp, err := c.http.Post(c.host+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", "", err
	}
	return out.Response, out.ThreadID, nil
}

func (c *client) listConversations() {
	endpoint := fmt.Sprintf("%s/conversations?user_id=%s", c.host, url.QueryEscape(c.userID))
	resp, err := c.http.Get(endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var out conversationList
	if err := decodeResponse(resp, &out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(out.Conversations) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	for _, conv := range out.Conversations {
		fmt.Printf("%s  %-50q  %d messages  %s\n",
			conv.ConversationID, conv.Title, conv.MessageCount,
			conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

// uploadURL takes "<url> [title]"; everything after the first space is the
// optional title.
func (c *client) uploadURL(args string) {
	if args == "" {
		fmt.Println("Usage: /url <url> [title]")
		return
	}
	rawURL, title := args, ""
	if i := strings.IndexByte(args, ' '); i > 0 {
		rawURL, title = args[:i], strings.TrimSpace(args[i+1:])
	}

	body, _ := json.Marshal(map[string]string{
		"url":     rawURL,
		"title":   title,
		"user_id": c.userID,
	})
	resp, err := c.http.Post(c.host+"/upload-url", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := decodeResponse(resp, &out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("Uploaded %q (document %s)\n", out.Title, out.DocumentID)
}

func (c *client) uploadFile(path string) {
	if path == "" {
		fmt.Println("Usage: /file <path>")
		return
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
	default:
		fmt.Println("Only .pdf, .txt, and .md files are supported.")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if _, err := io.Copy(part, file); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	_ = writer.WriteField("user_id", c.userID)
	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	resp, err := c.http.Post(c.host+"/upload-file", writer.FormDataContentType(), &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := decodeResponse(resp, &out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("Uploaded %q (document %s)\n", out.Title, out.DocumentID)
}

func decodeResponse(resp *http.Response, v any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Detail)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
