package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation,
		ErrInvalidCredentials,
		ErrNotFound,
		ErrRejected,
		ErrUnavailable,
		ErrChallengeFailed,
		ErrStorage,
	}
	for i := 0; i < len(sentinels); i++ {
		assert.NotEmpty(t, sentinels[i].Error())
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinel errors should be distinct: %q vs %q", sentinels[i], sentinels[j])
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("missing challenge: %w", ErrValidation), KindValidation},
		{"credentials", ErrInvalidCredentials, KindValidation},
		{"not found", fmt.Errorf("get login: %w", ErrNotFound), KindNotFound},
		{"rejected", fmt.Errorf("create client: %w", ErrRejected), KindRejected},
		{"unavailable", fmt.Errorf("list: %w", ErrUnavailable), KindUnavailable},
		{"challenge failed keeps inner kind", fmt.Errorf("%w: %w", ErrChallengeFailed, ErrUnavailable), KindUnavailable},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrRejected))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrStorage))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("list clients: %w", ErrUnavailable)))
	assert.False(t, Retryable(ErrRejected))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(nil))
}
