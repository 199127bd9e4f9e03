package models

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/jon4hz/movin/internal/video"
)

// ToPricing converts the settings to the pricing view.
func ToPricing(s settings.AppSettings) PricingResponse {
	return PricingResponse{
		TokenPrice:        s.TokenPrice,
		TokenPriceDisplay: humanize.Comma(s.TokenPrice),
		Currency:          s.Currency,
		FreeLimit:         s.FreeLimit,
	}
}

// ToJobResponse converts a video job. The upstream video location stays private.
func ToJobResponse(job video.Job, now time.Time) JobResponse {
	resp := JobResponse{
		ID:        job.ID,
		Status:    string(job.Status),
		Prompt:    job.Prompt,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		Age:       job.Age(now),
	}
	if job.Status == video.StatusDone {
		resp.ContentURL = "/api/animator/" + job.ID + "/content"
	}
	return resp
}
