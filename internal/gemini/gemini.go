package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
)

var (
	// ErrExternalService wraps every failure of the generative AI service.
	ErrExternalService = errors.New("external service failure")
	// ErrNoImage is returned when the model answered without an image.
	ErrNoImage = errors.New("no image was generated")
	// ErrInvalidConversation is returned for chat histories that cannot be answered.
	ErrInvalidConversation = errors.New("invalid conversation")
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of the design advice chat.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Image is an encoded image.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as a data URL for direct use in the browser.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// VideoStatus is the state of a long running video generation.
type VideoStatus struct {
	Done bool
	// URI of the generated video, set once Done without error.
	URI string
	// Error is set when the generation failed.
	Error string
}

// ThemeSuggestion is the branding proposed for a free text theme request.
type ThemeSuggestion struct {
	PrimaryColor string `json:"primaryColor"`
	ThemeMode    string `json:"themeMode"`
}

// Service is the generative AI collaborator behind the metered actions.
type Service interface {
	// EditImage changes an interior photo according to instruction.
	EditImage(ctx context.Context, img Image, instruction string) (Image, error)
	// Advise answers the last message of history.
	Advise(ctx context.Context, history []Message) (string, error)
	// StartVideo starts animating an interior photo and returns the operation name.
	StartVideo(ctx context.Context, img Image, instruction string) (string, error)
	// PollVideo returns the state of a video operation.
	PollVideo(ctx context.Context, operation string) (VideoStatus, error)
	// FetchVideo downloads a generated video.
	FetchVideo(ctx context.Context, uri string) (io.ReadCloser, string, error)
	// SuggestTheme proposes branding for a theme request.
	SuggestTheme(ctx context.Context, request string) (ThemeSuggestion, error)
}
