package service

import (
	"errors"
	"strconv"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/dto"
	"eventreg/internal/imagehost"
	"eventreg/internal/model"
	"eventreg/internal/repo"
	"eventreg/pkg/validator"
)

const defaultFeaturedLimit = 6

// ListGallery serves the public gallery. category=all is the same as no
// category; featured=true defaults the limit to six.
func (s *service) ListGallery(ctx *ginext.Context) {
	filter := model.GalleryFilter{Category: ctx.Query("category")}
	if filter.Category == "all" {
		filter.Category = ""
	}
	if filter.Category != "" && !model.ValidCategory(filter.Category) {
		dto.FieldIncorrectError(ctx, "category")
		return
	}
	if raw := ctx.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			dto.FieldBadFormatError(ctx, "featured")
			return
		}
		filter.Featured = featured
	}
	if raw := ctx.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			dto.FieldBadFormatError(ctx, "limit")
			return
		}
		filter.Limit = limit
	}
	if filter.Featured && filter.Limit == 0 {
		filter.Limit = defaultFeaturedLimit
	}

	images, err := s.repo.ListGallery(ctx.Request.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list gallery")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, images)
}

// CreateGalleryImage takes a multipart form with an image field plus title,
// description, category and featured.
func (s *service) CreateGalleryImage(ctx *ginext.Context) {
	var req dto.CreateGalleryRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid form data")
		return
	}
	if fields := validator.Fields(ctx, req); len(fields) > 0 {
		dto.FieldsError(ctx, fields)
		return
	}

	f, closer, err := formFile(ctx, "image")
	if err != nil {
		if !s.uploadError(ctx, err) {
			s.log.Error().Err(err).Msg("failed to read gallery upload")
			dto.BadResponseError(ctx, dto.FieldBadFormat, "Could not read the uploaded file")
		}
		return
	}
	defer closer.Close()

	if err := imagehost.Check(&f); err != nil {
		s.uploadError(ctx, err)
		return
	}
	asset, err := s.images.Upload(ctx.Request.Context(), f)
	if err != nil {
		if !s.uploadError(ctx, err) {
			s.log.Error().Err(err).Msg("failed to upload gallery image")
			dto.InternalServerError(ctx)
		}
		return
	}

	img := &model.GalleryImage{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Featured:     req.Featured,
		ImageURL:     asset.SecureURL,
		ThumbnailURL: asset.SecureURL,
		StorageRef:   asset.PublicID,
	}
	if err := s.repo.CreateGalleryImage(ctx.Request.Context(), img); err != nil {
		s.log.Error().Err(err).Str("public_id", asset.PublicID).Msg("failed to save gallery image; asset left on host")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("id", img.ID).Str("category", img.Category).Msg("gallery image added")
	dto.SuccessCreatedResponse(ctx, img)
}

func (s *service) UpdateGalleryImage(ctx *ginext.Context) {
	id := ctx.Param("id")

	var req dto.UpdateGalleryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if fields := validator.Fields(ctx, req); len(fields) > 0 {
		dto.FieldsError(ctx, fields)
		return
	}

	err := s.repo.UpdateGalleryImage(ctx.Request.Context(), id, model.GalleryImagePatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Featured:    req.Featured,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			dto.GalleryNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Str("id", id).Msg("failed to update gallery image")
		dto.InternalServerError(ctx)
		return
	}

	img, err := s.repo.GetGalleryImage(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("failed to reload gallery image")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, img)
}

// DeleteGalleryImage removes the document only; the hosted asset stays.
func (s *service) DeleteGalleryImage(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := s.repo.DeleteGalleryImage(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			dto.GalleryNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Str("id", id).Msg("failed to delete gallery image")
		dto.InternalServerError(ctx)
		return
	}
	s.log.Info().Str("id", id).Msg("gallery image deleted")
	dto.SuccessResponse(ctx, map[string]string{"id": id})
}
