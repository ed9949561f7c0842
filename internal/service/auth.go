package service

import (
	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/auth"
	"eventreg/internal/dto"
	"eventreg/pkg/validator"
)

func claimsFrom(ctx *ginext.Context) (*auth.Claims, bool) {
	v, ok := ctx.Get(auth.ClaimsKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	user, err := s.auth.SignIn(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		code := auth.CodeOf(err)
		s.log.Warn().Str("email", req.Email).Str("code", code).Msg("admin sign-in failed")
		dto.LoginError(ctx, code)
		return
	}

	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue session token")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("email", user.Email).Msg("admin signed in")
	dto.SuccessResponse(ctx, dto.LoginResponse{Token: token, ExpiresAt: exp, User: user})
}

func (s *service) Logout(ctx *ginext.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}
	s.tokens.Revoke(claims)
	s.log.Info().Str("email", claims.Email).Msg("admin signed out")
	dto.SuccessResponse(ctx, map[string]bool{"signed_out": true})
}

func (s *service) CurrentSession(ctx *ginext.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}
	dto.SuccessResponse(ctx, claims.User())
}
