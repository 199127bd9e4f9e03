package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	"github.com/jon4hz/movin/internal/config"
	"github.com/jon4hz/movin/internal/metrics"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Client talks to the Gemini API.
type Client struct {
	genai   *genai.Client
	http    *http.Client
	cfg     *config.GeminiConfig
	limiter *rate.Limiter
}

var _ Service = (*Client)(nil)

// New creates a Gemini client.
func New(ctx context.Context, cfg *config.GeminiConfig) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		genai:   gc,
		http:    &http.Client{Timeout: 5 * time.Minute},
		cfg:     cfg,
		limiter: newLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}, nil
}

func newLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// call waits for the rate limiter, runs fn and records the outcome.
func (c *Client) call(ctx context.Context, operation string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExternalService, operation, err)
	}

	start := time.Now()
	err := fn()
	metrics.RecordAICall(operation, err == nil, time.Since(start))
	if err != nil {
		log.Error("gemini call failed", "operation", operation, "error", err)
		report(operation, err)
		return fmt.Errorf("%w: %s: %w", ErrExternalService, operation, err)
	}
	log.Debug("gemini call finished", "operation", operation, "duration", time.Since(start))
	return nil
}

func report(operation string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		sentry.CaptureException(err)
	})
}

// EditImage changes an interior photo according to instruction.
func (c *Client) EditImage(ctx context.Context, img Image, instruction string) (Image, error) {
	var out Image
	err := c.call(ctx, "edit_image", func() error {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromBytes(img.Data, img.MIMEType),
				genai.NewPartFromText(editPrompt(instruction)),
			}, genai.RoleUser),
		}
		resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.ImageModel, contents, nil)
		if err != nil {
			return err
		}
		var ok bool
		out, ok = firstImage(resp)
		if !ok {
			return ErrNoImage
		}
		return nil
	})
	return out, err
}

// Advise answers the last message of history with the whole conversation as context.
func (c *Client) Advise(ctx context.Context, history []Message) (string, error) {
	contents, err := adviceContents(history)
	if err != nil {
		return "", err
	}

	var reply string
	err = c.call(ctx, "advise", func() error {
		resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.ChatModel, contents, &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(adviceSystemInstruction, genai.RoleUser),
		})
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(resp.Text())
		if reply == "" {
			return fmt.Errorf("empty reply")
		}
		return nil
	})
	return reply, err
}

// StartVideo starts animating an interior photo.
func (c *Client) StartVideo(ctx context.Context, img Image, instruction string) (string, error) {
	var name string
	err := c.call(ctx, "start_video", func() error {
		op, err := c.genai.Models.GenerateVideos(ctx, c.cfg.VideoModel, videoPrompt(instruction),
			&genai.Image{ImageBytes: img.Data, MIMEType: img.MIMEType},
			&genai.GenerateVideosConfig{
				NumberOfVideos: 1,
				AspectRatio:    "16:9",
				Resolution:     "720p",
			},
		)
		if err != nil {
			return err
		}
		name = op.Name
		return nil
	})
	return name, err
}

// PollVideo returns the state of a video operation.
func (c *Client) PollVideo(ctx context.Context, operation string) (VideoStatus, error) {
	var status VideoStatus
	err := c.call(ctx, "poll_video", func() error {
		op, err := c.genai.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: operation}, nil)
		if err != nil {
			return err
		}
		status = videoStatus(op)
		return nil
	})
	return status, err
}

// FetchVideo downloads a generated video. The caller closes the body.
func (c *Client) FetchVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	var (
		body        io.ReadCloser
		contentType string
	)
	err := c.call(ctx, "fetch_video", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return err
		}
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		body = resp.Body
		contentType = lo.CoalesceOrEmpty(resp.Header.Get("Content-Type"), "video/mp4")
		return nil
	})
	return body, contentType, err
}

// SuggestTheme proposes branding for a theme request.
func (c *Client) SuggestTheme(ctx context.Context, request string) (ThemeSuggestion, error) {
	var suggestion ThemeSuggestion
	err := c.call(ctx, "suggest_theme", func() error {
		resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.ThemeModel,
			genai.Text(themePrompt(request)),
			&genai.GenerateContentConfig{
				ResponseMIMEType: "application/json",
				ResponseSchema:   themeSchema,
			},
		)
		if err != nil {
			return err
		}
		suggestion, err = parseTheme(resp.Text())
		return err
	})
	return suggestion, err
}

var themeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"primaryColor": {Type: genai.TypeString},
		"themeMode":    {Type: genai.TypeString, Enum: []string{"light", "dark"}},
	},
	Required: []string{"primaryColor", "themeMode"},
}

func parseTheme(text string) (ThemeSuggestion, error) {
	var s ThemeSuggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &s); err != nil {
		return s, fmt.Errorf("failed to decode theme suggestion: %w", err)
	}
	if s.PrimaryColor == "" || s.ThemeMode == "" {
		return s, fmt.Errorf("incomplete theme suggestion %q", text)
	}
	return s, nil
}

// ValidateHistory checks that a conversation can be sent to the chat model.
func ValidateHistory(history []Message) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty conversation", ErrInvalidConversation)
	}
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleModel {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidConversation, m.Role)
		}
	}
	if last := history[len(history)-1]; last.Role != RoleUser || strings.TrimSpace(last.Text) == "" {
		return fmt.Errorf("%w: conversation must end with a user message", ErrInvalidConversation)
	}
	return nil
}

func adviceContents(history []Message) ([]*genai.Content, error) {
	if err := ValidateHistory(history); err != nil {
		return nil, err
	}
	return lo.Map(history, func(m Message, _ int) *genai.Content {
		if m.Role == RoleModel {
			return genai.NewContentFromText(m.Text, genai.RoleModel)
		}
		return genai.NewContentFromText(m.Text, genai.RoleUser)
	}), nil
}

func firstImage(resp *genai.GenerateContentResponse) (Image, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Image{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return Image{
				Data:     part.InlineData.Data,
				MIMEType: lo.CoalesceOrEmpty(part.InlineData.MIMEType, "image/png"),
			}, true
		}
	}
	return Image{}, false
}

func videoStatus(op *genai.GenerateVideosOperation) VideoStatus {
	if op == nil || !op.Done {
		return VideoStatus{}
	}
	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		return VideoStatus{Done: true, Error: lo.CoalesceOrEmpty(msg, "video generation failed")}
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 ||
		op.Response.GeneratedVideos[0].Video == nil || op.Response.GeneratedVideos[0].Video.URI == "" {
		return VideoStatus{Done: true, Error: "no video was generated"}
	}
	return VideoStatus{Done: true, URI: op.Response.GeneratedVideos[0].Video.URI}
}
