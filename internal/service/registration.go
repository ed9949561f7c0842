package service

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/dto"
	"eventreg/internal/idalloc"
	"eventreg/internal/payment"
	"eventreg/internal/phone"
	"eventreg/internal/receipt"
	"eventreg/internal/wizard"
)

func sessionResponse(sess wizard.Session) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID:      sess.ID,
		Step:           int(sess.Step),
		StepName:       sess.Step.String(),
		RegistrationID: sess.RegistrationID,
		Name:           sess.Form.Name,
		Year:           sess.Form.Year,
		RollNumber:     sess.Form.RollNumber,
		Phone:          sess.Form.Phone,
		ReceiptURL:     sess.ReceiptURL,
		UpdatedAt:      sess.UpdatedAt,
	}
}

// wizardError maps wizard state errors; it reports false for anything else.
func wizardError(ctx *ginext.Context, err error) bool {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		dto.SessionNotFoundError(ctx)
	case errors.Is(err, wizard.ErrBusy):
		dto.StepInProgressError(ctx)
	case errors.Is(err, wizard.ErrInvalidTransition):
		dto.InvalidStepError(ctx)
	default:
		return false
	}
	return true
}

// Register runs step one. A fresh session is started unless the body names
// one still on the form step.
func (s *service) Register(ctx *ginext.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		dto.RegisterRequest
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse register request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.pipeline.Start().ID
	}

	sess, err := s.pipeline.Submit(ctx.Request.Context(), sessionID, wizard.Form{
		Name:       req.Name,
		Year:       req.Year,
		RollNumber: req.RollNumber,
		Phone:      req.Phone,
	})
	if err != nil {
		var verr *wizard.ValidationError
		switch {
		case errors.As(err, &verr):
			dto.FieldsError(ctx, verr.Fields)
		case wizardError(ctx, err):
		case errors.Is(err, phone.ErrInvalidPhone):
			dto.FieldIncorrectError(ctx, "phone")
		case errors.Is(err, idalloc.ErrExhausted):
			s.log.Error().Err(err).Msg("registration id space exhausted")
			dto.IDsExhaustedError(ctx)
		default:
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to submit registration")
			dto.InternalServerError(ctx)
		}
		return
	}

	dto.SuccessCreatedResponse(ctx, sessionResponse(sess))
}

func (s *service) GetRegistrationSession(ctx *ginext.Context) {
	sess, err := s.pipeline.Get(ctx.Param("session"))
	if err != nil {
		dto.SessionNotFoundError(ctx)
		return
	}
	dto.SuccessResponse(ctx, sessionResponse(sess))
}

// paymentRequest builds the deep link for a session past step one.
func (s *service) paymentRequest(ctx *ginext.Context) (dto.PaymentResponse, bool) {
	sess, err := s.pipeline.Get(ctx.Param("session"))
	if err != nil {
		dto.SessionNotFoundError(ctx)
		return dto.PaymentResponse{}, false
	}
	if sess.Step < wizard.StepPayment {
		dto.InvalidStepError(ctx)
		return dto.PaymentResponse{}, false
	}

	settings, ok := s.hub.Settings.Current()
	if !ok {
		var err error
		if settings, err = s.hub.Settings.Refresh(ctx.Request.Context()); err != nil {
			s.log.Error().Err(err).Msg("failed to load event settings for payment")
			dto.EventNotLoadedError(ctx)
			return dto.PaymentResponse{}, false
		}
	}

	req := payment.Link(s.payee, payment.Payer{
		Name:       sess.Form.Name,
		RollNumber: sess.Form.RollNumber,
		Year:       sess.Form.Year,
		Phone:      sess.Form.Phone,
	}, settings.Price)
	return dto.PaymentResponse{Request: req, RegistrationID: sess.RegistrationID}, true
}

func (s *service) GetPayment(ctx *ginext.Context) {
	resp, ok := s.paymentRequest(ctx)
	if !ok {
		return
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetPaymentQR(ctx *ginext.Context) {
	resp, ok := s.paymentRequest(ctx)
	if !ok {
		return
	}
	png, err := payment.QRCode(resp.Link, s.qrSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render payment qr")
		dto.InternalServerError(ctx)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, "image/png", png)
}

func (s *service) MarkPaid(ctx *ginext.Context) {
	sess, err := s.pipeline.MarkPaid(ctx.Param("session"))
	if err != nil {
		if !wizardError(ctx, err) {
			dto.InternalServerError(ctx)
		}
		return
	}
	dto.SuccessResponse(ctx, sessionResponse(sess))
}

func (s *service) UploadReceipt(ctx *ginext.Context) {
	f, closer, err := formFile(ctx, "file")
	if err != nil {
		if !s.uploadError(ctx, err) {
			s.log.Error().Err(err).Msg("failed to read receipt upload")
			dto.BadResponseError(ctx, dto.FieldBadFormat, "Could not read the uploaded file")
		}
		return
	}
	defer closer.Close()

	sessionID := ctx.Param("session")
	sess, err := s.pipeline.UploadReceipt(ctx.Request.Context(), sessionID, f)
	if err != nil {
		switch {
		case wizardError(ctx, err):
		case s.uploadError(ctx, err):
		case errors.Is(err, receipt.ErrNoMatch):
			dto.NoMatchingPhoneError(ctx)
		case errors.Is(err, receipt.ErrAmbiguous):
			dto.AmbiguousPhoneError(ctx)
		case errors.Is(err, phone.ErrInvalidPhone):
			dto.FieldIncorrectError(ctx, "phone")
		default:
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to upload receipt")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("registration_id", sess.RegistrationID).
		Msg("registration completed")
	dto.SuccessResponse(ctx, sessionResponse(sess))
}
