package mock

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jon4hz/movin/internal/gemini"
)

// MockService is an in-memory gemini.Service for tests.
type MockService struct {
	mu sync.Mutex

	// Error injection
	EditError   error
	AdviseError error
	StartError  error
	PollError   error
	FetchError  error
	ThemeError  error

	// Canned responses
	EditResult   gemini.Image
	AdviceReply  string
	Theme        gemini.ThemeSuggestion
	VideoContent string

	// Operations maps operation names to their current status.
	Operations map[string]gemini.VideoStatus

	// Call tracking
	EditCalls   int
	AdviseCalls int
	StartCalls  int
	PollCalls   int
	ThemeCalls  int
	LastHistory []gemini.Message
	LastPrompt  string

	started int
}

var _ gemini.Service = (*MockService)(nil)

// NewMockService creates a mock with harmless canned responses.
func NewMockService() *MockService {
	return &MockService{
		EditResult:   gemini.Image{Data: []byte("edited"), MIMEType: "image/png"},
		AdviceReply:  "use warm colors",
		Theme:        gemini.ThemeSuggestion{PrimaryColor: "#0f766e", ThemeMode: "dark"},
		VideoContent: "video-bytes",
		Operations:   make(map[string]gemini.VideoStatus),
	}
}

// Finish marks an operation as done with the given video URI.
func (m *MockService) Finish(operation, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Operations[operation] = gemini.VideoStatus{Done: true, URI: uri}
}

// Fail marks an operation as failed.
func (m *MockService) Fail(operation, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Operations[operation] = gemini.VideoStatus{Done: true, Error: reason}
}

func (m *MockService) EditImage(ctx context.Context, img gemini.Image, instruction string) (gemini.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EditCalls++
	m.LastPrompt = instruction
	if m.EditError != nil {
		return gemini.Image{}, m.EditError
	}
	return m.EditResult, nil
}

func (m *MockService) Advise(ctx context.Context, history []gemini.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AdviseCalls++
	m.LastHistory = append([]gemini.Message(nil), history...)
	if m.AdviseError != nil {
		return "", m.AdviseError
	}
	return m.AdviceReply, nil
}

func (m *MockService) StartVideo(ctx context.Context, img gemini.Image, instruction string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	m.LastPrompt = instruction
	if m.StartError != nil {
		return "", m.StartError
	}
	m.started++
	name := fmt.Sprintf("operations/%d", m.started)
	m.Operations[name] = gemini.VideoStatus{}
	return name, nil
}

func (m *MockService) PollVideo(ctx context.Context, operation string) (gemini.VideoStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PollCalls++
	if m.PollError != nil {
		return gemini.VideoStatus{}, m.PollError
	}
	status, ok := m.Operations[operation]
	if !ok {
		return gemini.VideoStatus{}, fmt.Errorf("%w: unknown operation %s", gemini.ErrExternalService, operation)
	}
	return status, nil
}

func (m *MockService) FetchVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchError != nil {
		return nil, "", m.FetchError
	}
	return io.NopCloser(strings.NewReader(m.VideoContent)), "video/mp4", nil
}

func (m *MockService) SuggestTheme(ctx context.Context, request string) (gemini.ThemeSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThemeCalls++
	m.LastPrompt = request
	if m.ThemeError != nil {
		return gemini.ThemeSuggestion{}, m.ThemeError
	}
	return m.Theme, nil
}

// Calls returns the number of calls made to each method.
func (m *MockService) Calls() (edit, advise, start, poll, theme int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EditCalls, m.AdviseCalls, m.StartCalls, m.PollCalls, m.ThemeCalls
}
