package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/admin"
	"eventreg/internal/dto"
	"eventreg/internal/model"
	"eventreg/internal/phone"
	"eventreg/internal/repo"
	"eventreg/pkg/validator"
)

// respondRegistrations re-fetches the full list so the admin view reflects
// the store after a mutation.
func (s *service) respondRegistrations(ctx *ginext.Context, term string) {
	regs, err := s.repo.ListRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations")
		dto.InternalServerError(ctx)
		return
	}
	regs = admin.Filter(regs, term)
	dto.SuccessResponse(ctx, dto.RegistrationsResponse{Total: len(regs), Registrations: regs})
}

func (s *service) ListRegistrations(ctx *ginext.Context) {
	s.respondRegistrations(ctx, ctx.Query("q"))
}

func (s *service) UpdateRegistration(ctx *ginext.Context) {
	id := ctx.Param("id")

	var req dto.UpdateRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if req.Phone != nil {
		digits := phone.Digits(*req.Phone)
		req.Phone = &digits
	}
	if fields := validator.Fields(ctx, req); len(fields) > 0 {
		dto.FieldsError(ctx, fields)
		return
	}

	patch := model.RegistrationPatch{
		Name:       req.Name,
		Year:       req.Year,
		RollNumber: req.RollNumber,
	}
	if req.Phone != nil {
		canonical, err := phone.Canonical(*req.Phone)
		if err != nil {
			dto.FieldIncorrectError(ctx, "phone")
			return
		}
		patch.Phone = &canonical
	}

	if err := s.repo.UpdateRegistration(ctx.Request.Context(), id, patch); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			dto.RegistrationNotFoundError(ctx)
		case errors.Is(err, repo.ErrEmptyPatch):
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Nothing to update")
		default:
			s.log.Error().Err(err).Str("id", id).Msg("failed to update registration")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().Str("id", id).Msg("registration updated")
	s.respondRegistrations(ctx, "")
}

func (s *service) DeleteRegistration(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := s.repo.DeleteRegistration(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			dto.RegistrationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Str("id", id).Msg("failed to delete registration")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("id", id).Msg("registration deleted")
	s.respondRegistrations(ctx, "")
}

// ExportRegistrations downloads the full or filtered list as CSV.
func (s *service) ExportRegistrations(ctx *ginext.Context) {
	regs, err := s.repo.ListRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations for export")
		dto.InternalServerError(ctx)
		return
	}
	regs = admin.Filter(regs, ctx.Query("q"))

	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, admin.Filename(s.now().In(s.loc))))
	ctx.Status(http.StatusOK)
	if err := admin.WriteCSV(ctx.Writer, regs, s.loc); err != nil {
		s.log.Error().Err(err).Msg("failed to write registrations csv")
	}
}

func (s *service) UpdateEventDetails(ctx *ginext.Context) {
	var req dto.UpdateDetailsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	details, err := s.hub.UpdateDetails(ctx.Request.Context(), model.EventDetailsPatch{
		EventDate:         req.EventDate,
		EventTime:         req.EventTime,
		EventLocation:     req.EventLocation,
		EventRestrictions: req.EventRestrictions,
	})
	if err != nil {
		if errors.Is(err, repo.ErrEmptyPatch) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Nothing to update")
			return
		}
		s.log.Error().Err(err).Msg("failed to update event details")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("id", details.ID).Msg("event details updated")
	dto.SuccessResponse(ctx, details)
}

func (s *service) UpdateEventSettings(ctx *ginext.Context) {
	var req dto.UpdateSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	settings, err := s.hub.UpdatePrice(ctx.Request.Context(), *req.Price)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to update event settings")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int("price", settings.Price).Msg("event price updated")
	dto.SuccessResponse(ctx, settings)
}
