package service

import (
	"io"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/dto"
	"eventreg/internal/model"
)

func (s *service) GetEvent(ctx *ginext.Context) {
	settings, okS := s.hub.Settings.Current()
	details, okD := s.hub.Details.Current()
	if !okS || !okD {
		var err error
		if settings, err = s.hub.Settings.Refresh(ctx.Request.Context()); err != nil {
			s.log.Error().Err(err).Msg("failed to load event settings")
			dto.EventNotLoadedError(ctx)
			return
		}
		if details, err = s.hub.Details.Refresh(ctx.Request.Context()); err != nil {
			s.log.Error().Err(err).Msg("failed to load event details")
			dto.EventNotLoadedError(ctx)
			return
		}
	}
	dto.SuccessResponse(ctx, dto.EventResponse{Settings: settings, Details: details})
}

// StreamEvent pushes the current settings and details, then every change,
// as server-sent events until the client goes away.
func (s *service) StreamEvent(ctx *ginext.Context) {
	settingsCh, stopSettings := s.hub.Settings.Subscribe()
	defer stopSettings()
	detailsCh, stopDetails := s.hub.Details.Subscribe()
	defer stopDetails()

	var pending []func()
	if cur, ok := s.hub.Settings.Current(); ok {
		pending = append(pending, func() { ctx.SSEvent("settings", cur) })
	}
	if cur, ok := s.hub.Details.Current(); ok {
		pending = append(pending, func() { ctx.SSEvent("details", cur) })
	}

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")

	done := ctx.Request.Context().Done()
	ctx.Stream(func(w io.Writer) bool {
		if len(pending) > 0 {
			for _, send := range pending {
				send()
			}
			pending = nil
			return true
		}
		var (
			settings model.EventSettings
			details  model.EventDetails
			ok       bool
		)
		select {
		case <-done:
			return false
		case <-s.shutdown:
			return false
		case settings, ok = <-settingsCh:
			if !ok {
				return false
			}
			ctx.SSEvent("settings", settings)
		case details, ok = <-detailsCh:
			if !ok {
				return false
			}
			ctx.SSEvent("details", details)
		}
		return true
	})
}
