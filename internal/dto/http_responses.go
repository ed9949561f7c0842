package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"eventreg/internal/auth"
	"eventreg/internal/model"
	"eventreg/internal/payment"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ValidationFailed   = "VALIDATION_FAILED"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	SessionNotFound      = "SESSION_NOT_FOUND"
	InvalidStep          = "INVALID_STEP"
	StepInProgress       = "STEP_IN_PROGRESS"
	RegistrationNotFound = "REGISTRATION_NOT_FOUND"
	NoMatchingPhone      = "NO_MATCHING_REGISTRATION"
	AmbiguousPhone       = "AMBIGUOUS_REGISTRATION"
	IDsExhausted         = "REGISTRATION_IDS_EXHAUSTED"
	GalleryNotFound      = "GALLERY_IMAGE_NOT_FOUND"
	FileMissing          = "FILE_MISSING"
	FileNotImage         = "FILE_NOT_IMAGE"
	FileTooLarge         = "FILE_TOO_LARGE"
	UploadFailed         = "UPLOAD_FAILED"
	Unauthorized         = "UNAUTHORIZED"
	EventNotLoaded       = "EVENT_NOT_LOADED"
)

type RegisterRequest struct {
	Name       string `json:"name"`
	Year       string `json:"year"`
	RollNumber string `json:"roll_number"`
	Phone      string `json:"phone"`
}

type UpdateRegistrationRequest struct {
	Name       *string `json:"name" validate:"omitempty,notblank"`
	Year       *string `json:"year" validate:"omitempty,year"`
	RollNumber *string `json:"roll_number" validate:"omitempty,notblank"`
	Phone      *string `json:"phone" validate:"omitempty,phone10"`
}

type UpdateDetailsRequest struct {
	EventDate         *string `json:"event_date"`
	EventTime         *string `json:"event_time"`
	EventLocation     *string `json:"event_location"`
	EventRestrictions *string `json:"event_restrictions"`
}

type UpdateSettingsRequest struct {
	Price *int `json:"price" validate:"required,gte=0"`
}

type CreateGalleryRequest struct {
	Title       string `form:"title" json:"title" validate:"notblank"`
	Description string `form:"description" json:"description"`
	Category    string `form:"category" json:"category" validate:"required,category"`
	Featured    bool   `form:"featured" json:"featured"`
}

type UpdateGalleryRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,category"`
	Featured    *bool   `json:"featured"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SessionResponse struct {
	SessionID      string    `json:"session_id"`
	Step           int       `json:"step"`
	StepName       string    `json:"step_name"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Name           string    `json:"name,omitempty"`
	Year           string    `json:"year,omitempty"`
	RollNumber     string    `json:"roll_number,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	ReceiptURL     string    `json:"receipt_url,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type EventResponse struct {
	Settings model.EventSettings `json:"settings"`
	Details  model.EventDetails  `json:"details"`
}

type PaymentResponse struct {
	payment.Request
	RegistrationID string `json:"registration_id"`
}

type RegistrationsResponse struct {
	Total         int                  `json:"total"`
	Registrations []model.Registration `json:"registrations"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      auth.User `json:"user"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.JSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

// FieldsError reports every failing form field at once; data maps field
// name to message.
func FieldsError(c *ginext.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, Response{
		Status: "error",
		Error: &Error{
			Code: ValidationFailed,
			Desc: "Please correct the highlighted fields",
		},
		Data: fields,
	})
}

func SessionNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, SessionNotFound, "Registration session not found. Please start again")
}

func InvalidStepError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, InvalidStep, "This step is not available right now")
}

func StepInProgressError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, StepInProgress, "Please wait, your previous request is still being processed")
}

func RegistrationNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, RegistrationNotFound, "Registration not found")
}

func NoMatchingPhoneError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, NoMatchingPhone, "No registration found with this phone number")
}

func AmbiguousPhoneError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, AmbiguousPhone, "More than one registration uses this phone number")
}

func IDsExhaustedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusServiceUnavailable, IDsExhausted, "Could not allocate a registration number. Please try again")
}

func GalleryNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, GalleryNotFound, "Gallery image not found")
}

func FileMissingError(c *ginext.Context) {
	BadResponseError(c, FileMissing, "Please select a file to upload")
}

func FileNotImageError(c *ginext.Context) {
	BadResponseError(c, FileNotImage, "Only image files are allowed")
}

func FileTooLargeError(c *ginext.Context) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, FileTooLarge, "File size exceeds 5MB limit")
}

func UploadFailedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusBadGateway, UploadFailed, desc)
}

func UnauthorizedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, "Please sign in to continue")
}

// LoginError reports a sign-in failure with the provider code so the
// client can react to throttling.
func LoginError(c *ginext.Context, code string) {
	status := http.StatusUnauthorized
	if code == auth.CodeTooManyRequests {
		status = http.StatusTooManyRequests
	}
	if code == "" {
		code = Unauthorized
	}
	ErrorResponse(c, status, code, auth.Message(code))
}

func EventNotLoadedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusServiceUnavailable, EventNotLoaded, "Event information is loading, please retry")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
