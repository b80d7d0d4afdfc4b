package f5tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"voxmate/app/config"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/spf13/afero"
)

// Client talks to an F5-TTS Gradio app over its HTTP API.
type Client struct {
	cfg  config.Voice
	fs   afero.Fs
	http *http.Client

	mu      sync.Mutex
	refFile *FileData
}

type FileData struct {
	Path string         `json:"path"`
	URL  string         `json:"url,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

type callResponse struct {
	EventID string `json:"event_id"`
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return New(cfg.Voice, afero.NewOsFs(), &http.Client{Timeout: cfg.Voice.Timeout}), nil
}

func New(cfg config.Voice, fs afero.Fs, httpClient *http.Client) *Client {
	return &Client{
		cfg:  cfg,
		fs:   fs,
		http: httpClient,
	}
}

// Synthesize renders text in the reference voice and returns the WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ref, err := c.reference(ctx)
	if err != nil {
		return nil, err
	}

	eventID, err := c.call(ctx, []any{
		ref,
		c.cfg.RefText,
		text,
		c.cfg.RemoveSilence,
		c.cfg.CrossFade,
		c.cfg.Speed,
	})
	if err != nil {
		return nil, err
	}

	output, err := c.await(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return c.download(ctx, output)
}

// reference uploads the reference voice once and remembers its server path.
func (c *Client) reference(ctx context.Context) (*FileData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refFile != nil {
		return c.refFile, nil
	}

	content, err := afero.ReadFile(c.fs, c.cfg.RefAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference audio: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("files", filepath.Base(c.cfg.RefAudio))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err = part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}

	if err = form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	query := url.Values{"upload_id": {uuid.NewString()}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload")+"?"+query.Encode(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var paths []string
	if err = c.doJSON(req, &paths); err != nil {
		return nil, fmt.Errorf("failed to upload reference audio: %w", err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("upload returned no paths")
	}

	c.refFile = &FileData{
		Path: paths[0],
		Meta: map[string]any{"_type": "gradio.FileData"},
	}

	return c.refFile, nil
}

func (c *Client) call(ctx context.Context, data []any) (string, error) {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("failed to marshal call payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/call/"+c.cfg.APIName), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res callResponse
	if err = c.doJSON(req, &res); err != nil {
		return "", fmt.Errorf("failed to call %s: %w", c.cfg.APIName, err)
	}

	if res.EventID == "" {
		return "", fmt.Errorf("call %s returned no event id", c.cfg.APIName)
	}

	return res.EventID, nil
}

// await reads the event stream of a call until it completes and returns its
// first output file.
func (c *Client) await(ctx context.Context, eventID string) (*FileData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/call/"+c.cfg.APIName+"/"+eventID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	event := ""
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			switch event {
			case "complete":
				return parseOutput(data)
			case "error":
				return nil, fmt.Errorf("synthesis failed: %s", data)
			}
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	return nil, fmt.Errorf("event stream ended before completion")
}

func parseOutput(data string) (*FileData, error) {
	var outputs []json.RawMessage
	if err := json.Unmarshal([]byte(data), &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse output: %w", err)
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("call produced no output")
	}

	var file FileData
	if err := json.Unmarshal(outputs[0], &file); err != nil {
		return nil, fmt.Errorf("failed to parse output file: %w", err)
	}

	if file.Path == "" && file.URL == "" {
		return nil, fmt.Errorf("output file has no location")
	}

	return &file, nil
}

func (c *Client) download(ctx context.Context, file *FileData) ([]byte, error) {
	location := file.URL
	if location == "" {
		location = c.endpoint("/file=" + file.Path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	return content, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.APIPrefix + path
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
