package models

import (
	"time"

	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/session"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/jon4hz/movin/internal/view"
)

// StateResponse is everything the interface needs to render itself.
type StateResponse struct {
	Session           session.Session      `json:"session"`
	Settings          settings.AppSettings `json:"settings"`
	LanguageConfirmed bool                 `json:"languageConfirmed"`
	Section           view.Section         `json:"section"`
	Screen            view.Screen          `json:"screen"`
	Direction         string               `json:"direction"`
	Sections          []view.Section       `json:"sections"`
}

// PricingResponse describes the price of credits.
type PricingResponse struct {
	TokenPrice        int64  `json:"tokenPrice"`
	TokenPriceDisplay string `json:"tokenPriceDisplay"`
	Currency          string `json:"currency"`
	FreeLimit         int    `json:"freeLimit"`
}

// JobResponse is the public view of a video job.
type JobResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Prompt     string    `json:"prompt"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Age        string    `json:"age"`
	ContentURL string    `json:"contentUrl,omitempty"`
}

// LanguageRequest confirms the interface language.
type LanguageRequest struct {
	Language settings.Language `json:"language" binding:"required"`
}

// RegisterRequest claims a handle.
type RegisterRequest struct {
	Handle string `json:"handle"`
}

// AdviceRequest carries the whole design chat.
type AdviceRequest struct {
	History []gemini.Message `json:"history" binding:"required"`
}

// LoginRequest unlocks the admin panel.
type LoginRequest struct {
	Password string `json:"password"`
}

// GrantRequest adds credits to a handle. Amount may be negative.
type GrantRequest struct {
	Handle string `json:"handle" binding:"required"`
	Amount *int   `json:"amount" binding:"required"`
}

// ThemeRequest asks the AI for new branding.
type ThemeRequest struct {
	Request string `json:"request" binding:"required"`
}
