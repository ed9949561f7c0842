package service

import (
	"errors"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/dto"
	"eventreg/internal/imagehost"
)

// formFile opens the multipart file under field. The returned closer must be
// called once the upload is done.
func formFile(ctx *ginext.Context, field string) (imagehost.File, io.Closer, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return imagehost.File{}, nil, imagehost.ErrNoFile
		}
		return imagehost.File{}, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return imagehost.File{}, nil, err
	}
	return imagehost.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	}, f, nil
}

// uploadError writes the envelope for a failed image upload and reports
// whether err was one of the upload failures.
func (s *service) uploadError(ctx *ginext.Context, err error) bool {
	var uerr *imagehost.UploadError
	switch {
	case errors.Is(err, imagehost.ErrNoFile):
		dto.FileMissingError(ctx)
	case errors.Is(err, imagehost.ErrNotImage):
		dto.FileNotImageError(ctx)
	case errors.Is(err, imagehost.ErrTooLarge):
		dto.FileTooLargeError(ctx)
	case errors.As(err, &uerr):
		s.log.Error().Err(err).Int("status", uerr.Status).Msg("image host rejected upload")
		dto.UploadFailedError(ctx, uerr.Message)
	default:
		return false
	}
	return true
}
