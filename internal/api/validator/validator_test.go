package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notePayload struct {
	Level string `json:"level" validate:"omitempty,notification_level"`
}

func TestNotificationLevelValidation(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)

	for _, level := range []string{"ERROR", "WARNING", "INFO", "SUCCESS", "RECOMMENDATION"} {
		assert.NoError(t, v.Validate(&notePayload{Level: level}), level)
	}

	// empty is allowed, anything else is not
	assert.NoError(t, v.Validate(&notePayload{}))

	err := v.Validate(&notePayload{Level: "URGENT"})
	require.Error(t, err)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "level", verrs[0].Field())
}

func TestLoginRequestValidation(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&LoginRequest{Email: "alice@example.com", Password: "pw"}))
	assert.Error(t, v.Validate(&LoginRequest{Email: "not-an-email", Password: "pw"}))
	assert.Error(t, v.Validate(&LoginRequest{Email: "alice@example.com"}))
}
