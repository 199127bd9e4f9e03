package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/movin/internal/app"
	"github.com/jon4hz/movin/internal/cache"
	"github.com/jon4hz/movin/internal/config"
	"github.com/jon4hz/movin/internal/database/mock"
	"github.com/jon4hz/movin/internal/gemini"
	geminimock "github.com/jon4hz/movin/internal/gemini/mock"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/scheduler"
	"github.com/jon4hz/movin/internal/video"
	"github.com/stretchr/testify/suite"
)

const testPassphrase = "open sesame"

type APITestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *mock.MockDB
	ai      *geminimock.MockService
	app     *app.App
	videos  *video.Manager
	router  http.Handler
	cookies []*http.Cookie
}

func (s *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *APITestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = mock.NewMockDB()
	s.ai = geminimock.NewMockService()
	s.cookies = nil

	var err error
	s.app, err = app.New(s.ctx, s.db, testPassphrase)
	s.Require().NoError(err)

	cfg := &config.Config{
		Listen:        "127.0.0.1:0",
		SessionKey:    "test-session-key",
		SessionMaxAge: 3600,
		Cache:         &config.CacheConfig{Type: config.CacheTypeMemory},
		Gemini: &config.GeminiConfig{
			RequestTimeout:    time.Minute,
			MaxImageDimension: 64,
		},
		Video: &config.VideoConfig{PollInterval: time.Second, JobTTL: time.Hour},
	}

	jobs := cache.New[video.Job](cfg.Cache, video.CachePrefix)
	s.videos = video.NewManager(s.ai, jobs, cfg.Video.JobTTL)

	sched, err := scheduler.New()
	s.Require().NoError(err)

	server, err := New(cfg, s.app, s.ai, s.videos, sched)
	s.Require().NoError(err)
	s.router = server.Router()
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

// do sends req with the cookies collected so far, like a browser would.
func (s *APITestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return rec
}

func (s *APITestSuite) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *APITestSuite) upload(path, prompt string) *httptest.ResponseRecorder {
	img := image.NewRGBA(image.Rect(0, 0, 128, 96))
	for x := range 128 {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var raw bytes.Buffer
	s.Require().NoError(png.Encode(&raw, img))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	s.Require().NoError(w.WriteField("prompt", prompt))
	part, err := w.CreateFormFile("image", "room.png")
	s.Require().NoError(err)
	_, err = part.Write(raw.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *APITestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *APITestSuite) state() map[string]any {
	rec := s.doJSON(http.MethodGet, "/api/state", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	return s.decode(rec)
}

func (s *APITestSuite) advise() *httptest.ResponseRecorder {
	return s.doJSON(http.MethodPost, "/api/advisor", map[string]any{
		"history": []gemini.Message{{Role: gemini.RoleUser, Text: "which sofa?"}},
	})
}

func (s *APITestSuite) login() {
	rec := s.doJSON(http.MethodPost, "/admin/login", map[string]string{"password": testPassphrase})
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestHealthz() {
	rec := s.doJSON(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestStateStartsWithLanguagePicker() {
	st := s.state()
	s.Equal("language", st["screen"])
	s.Equal("rtl", st["direction"])
	s.Equal(false, st["languageConfirmed"])

	rec := s.doJSON(http.MethodPost, "/api/language", map[string]string{"language": "en"})
	s.Require().Equal(http.StatusOK, rec.Code)

	st = s.state()
	s.Equal("editor", st["screen"])
	s.Equal("ltr", st["direction"])
}

func (s *APITestSuite) TestConfirmLanguage_Unsupported() {
	rec := s.doJSON(http.MethodPost, "/api/language", map[string]string{"language": "de"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestSelectSection() {
	s.doJSON(http.MethodPost, "/api/language", map[string]string{"language": "fa"})

	rec := s.doJSON(http.MethodPost, "/api/view/advisor", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("advisor", s.state()["screen"])

	rec = s.doJSON(http.MethodPost, "/api/view/kitchen", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("advisor", s.state()["screen"])
}

func (s *APITestSuite) TestRegister() {
	rec := s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "Ali "})
	s.Require().Equal(http.StatusOK, rec.Code)

	session := s.state()["session"].(map[string]any)
	s.Equal("ali", session["activeHandle"])

	rec = s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "ALI"})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "   "})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestRegister_NotActivated() {
	s.db.SetKeyErrors[ledger.ActiveHandleKey] = errors.New("disk full")

	rec := s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "ali"})
	s.Require().Equal(http.StatusInternalServerError, rec.Code)
	body := s.decode(rec)
	s.Equal("@ali was created but could not be activated", body["error"])
	s.Equal("ali", body["user"].(map[string]any)["handle"])

	rec = s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "ali"})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *APITestSuite) TestGateDenialShowsPricing() {
	s.doJSON(http.MethodPost, "/api/language", map[string]string{"language": "fa"})
	s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "ali"})

	limit := s.app.Settings().FreeLimit
	for i := range limit {
		rec := s.advise()
		s.Require().Equal(http.StatusOK, rec.Code, "advice %d", i)
	}

	rec := s.advise()
	s.Require().Equal(http.StatusPaymentRequired, rec.Code)
	body := s.decode(rec)
	s.Equal(false, body["success"])
	s.Equal("pricing", body["redirect"])

	s.Equal("pricing", s.state()["screen"])
	_, advise, _, _, _ := s.ai.Calls()
	s.Equal(limit, advise)

	raw, ok := s.db.Raw(ledger.LedgerKey)
	s.Require().True(ok)
	s.JSONEq(`{"ali":{"credits":0}}`, raw)
}

func (s *APITestSuite) TestAdvise_InvalidHistoryIsFree() {
	rec := s.doJSON(http.MethodPost, "/api/advisor", map[string]any{
		"history": []gemini.Message{{Role: gemini.RoleModel, Text: "hello"}},
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(s.app.Settings().FreeLimit, s.app.Snapshot().Credits)
}

func (s *APITestSuite) TestAdvise_AIFailure() {
	s.ai.AdviseError = gemini.ErrExternalService

	rec := s.advise()
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Equal(s.app.Settings().FreeLimit-1, s.app.Snapshot().Credits)
}

func (s *APITestSuite) TestEditImage() {
	rec := s.upload("/api/editor", "paint the walls green")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal("data:image/png;base64,ZWRpdGVk", body["image"])
	s.Equal(float64(s.app.Settings().FreeLimit-1), body["credits"])
	s.Equal("paint the walls green", s.ai.LastPrompt)
}

func (s *APITestSuite) TestEditImage_MissingImage() {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	s.Require().NoError(w.WriteField("prompt", "paint"))
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/editor", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	edit, _, _, _, _ := s.ai.Calls()
	s.Zero(edit)
}

func (s *APITestSuite) TestAnimator() {
	rec := s.upload("/api/animator", "slow pan")
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())

	job := s.decode(rec)["job"].(map[string]any)
	id := job["id"].(string)
	s.Equal("pending", job["status"])

	rec = s.doJSON(http.MethodGet, "/api/animator/"+id+"/content", nil)
	s.Equal(http.StatusConflict, rec.Code)

	s.ai.Finish("operations/1", "https://example.com/video.mp4")
	s.Require().NoError(s.videos.Poll(s.ctx))

	rec = s.doJSON(http.MethodGet, "/api/animator/"+id, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	job = s.decode(rec)["job"].(map[string]any)
	s.Equal("done", job["status"])
	s.Equal("/api/animator/"+id+"/content", job["contentUrl"])

	rec = s.doJSON(http.MethodGet, "/api/animator/"+id+"/content", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("video-bytes", rec.Body.String())
	s.Equal("video/mp4", rec.Header().Get("Content-Type"))

	rec = s.doJSON(http.MethodGet, "/api/animator/missing", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APITestSuite) TestAdminRoutesRequireLogin() {
	for _, path := range []string{"/admin/settings", "/admin/users", "/admin/jobs"} {
		rec := s.doJSON(http.MethodGet, path, nil)
		s.Equal(http.StatusForbidden, rec.Code, path)
	}

	s.doJSON(http.MethodPost, "/api/language", map[string]string{"language": "fa"})
	rec := s.doJSON(http.MethodPost, "/admin/login", map[string]string{"password": "guess"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	s.login()
	s.Equal("admin", s.state()["screen"])

	rec = s.doJSON(http.MethodGet, "/admin/users", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodPost, "/admin/exit", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodGet, "/admin/users", nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *APITestSuite) TestAdminGrantCredits() {
	s.doJSON(http.MethodPost, "/api/profile", map[string]string{"handle": "mina"})
	s.login()

	rec := s.doJSON(http.MethodPost, "/admin/credits", map[string]any{"handle": "MINA", "amount": 5})
	s.Require().Equal(http.StatusOK, rec.Code)
	user := s.decode(rec)["user"].(map[string]any)
	s.Equal(float64(s.app.Settings().FreeLimit+5), user["credits"])
	s.Equal(s.app.Settings().FreeLimit+5, s.app.Snapshot().Credits)

	rec = s.doJSON(http.MethodPost, "/admin/credits", map[string]any{"handle": "ghost", "amount": 1})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.doJSON(http.MethodPost, "/admin/credits", map[string]any{"handle": "mina"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestAdminUpdateSettings() {
	s.login()

	rec := s.doJSON(http.MethodPatch, "/admin/settings", map[string]any{"freeLimit": 3, "currency": "تومان"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(3, s.app.Settings().FreeLimit)

	rec = s.doJSON(http.MethodPatch, "/admin/settings", map[string]any{"themeMode": "sepia"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPatch, "/admin/settings", map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodGet, "/api/pricing", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(float64(3), s.decode(rec)["freeLimit"])
}

func (s *APITestSuite) TestAdminSuggestTheme() {
	s.login()

	rec := s.doJSON(http.MethodPost, "/admin/theme", map[string]string{"request": "calm and earthy"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("#0f766e", s.app.Settings().PrimaryColor)
	s.Equal("calm and earthy", s.ai.LastPrompt)

	s.ai.ThemeError = gemini.ErrExternalService
	rec = s.doJSON(http.MethodPost, "/admin/theme", map[string]string{"request": "loud"})
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Equal("#0f766e", s.app.Settings().PrimaryColor)
}

func (s *APITestSuite) TestAdminJobs() {
	s.upload("/api/animator", "orbit")
	s.login()

	rec := s.doJSON(http.MethodGet, "/admin/jobs", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Len(body["pendingJobs"], 1)
}

func (s *APITestSuite) TestMetricsEndpoint() {
	s.advise()

	rec := s.doJSON(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "movin_http_requests_total")
}
