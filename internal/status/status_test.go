package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"wrapped step", Wrap(CodeDBInsertFailed, "insert", errors.New("boom")), CodeDBInsertFailed},
		{"malformed", fmt.Errorf("verify: %w", ErrMalformed), CodeBadToken},
		{"signature", ErrSignatureMismatch, CodeSignInvalid},
		{"invalid input", fmt.Errorf("issue: %w", ErrInvalidInput), CodeInvalidInput},
		{"config", ErrConfig, CodeEnvMissing},
		{"unknown", errors.New("something else"), CodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("smtp: connection refused")
	err := Wrap(CodeDelivery, "deliver", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "deliver: DELIVERY_FAILED: smtp: connection refused", err.Error())

	assert.Equal(t, "render: RENDER_FAILED", Wrap(CodeRenderFailed, "render", nil).Error())
}

func TestIsInput(t *testing.T) {
	assert.True(t, IsInput(CodeSignInvalid))
	assert.True(t, IsInput(CodeNotFound))
	assert.False(t, IsInput(CodeDBCheckFailed))
	assert.False(t, IsInput(CodeAlreadyUsed))
}
