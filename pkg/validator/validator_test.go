package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name     string `json:"name" validate:"notblank"`
	Year     string `json:"year" validate:"required,year"`
	Phone    string `json:"phone" validate:"required,phone10"`
	Category string `json:"category,omitempty" validate:"omitempty,category"`
}

func TestFieldsReportsEachFailingField(t *testing.T) {
	fields := Fields(context.Background(), form{Name: "  ", Year: "2nd", Phone: "12345"})
	require.Len(t, fields, 3)
	assert.Equal(t, ErrFieldRequired, fields["name"])
	assert.Equal(t, ErrYear, fields["year"])
	assert.Equal(t, ErrPhoneDigits, fields["phone"])
}

func TestFieldsValid(t *testing.T) {
	assert.Nil(t, Fields(context.Background(), form{Name: "Asha", Year: "3rd", Phone: "9999999999"}))
}

func TestValidateFirstError(t *testing.T) {
	err := Validate(context.Background(), form{Name: "Asha", Year: "4th", Phone: "999999999a"})
	require.Error(t, err)
	assert.Equal(t, ErrPhoneDigits+": phone", err.Error())
}

func TestCategoryTag(t *testing.T) {
	err := Validate(context.Background(), form{Name: "a", Year: "3rd", Phone: "9999999999", Category: "selfie"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCategory)
}
