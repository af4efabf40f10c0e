package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("Invalid or missing amount"), http.StatusBadRequest},
		{"configuration", apperrors.Configuration("STRIPE_SECRET_KEY"), http.StatusInternalServerError},
		{"signature", apperrors.Signature(stderrors.New("bad sig")), http.StatusBadRequest},
		{"collaborator", apperrors.Collaborator("ledger_append", "Failed to save order", nil), http.StatusInternalServerError},
		{"serialization untrusted", apperrors.Serialization("Invalid JSON body", nil, false), http.StatusBadRequest},
		{"serialization trusted", apperrors.Serialization("Invalid order metadata", nil, true), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", apperrors.Validation("x")), http.StatusBadRequest},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apperrors.StatusOf(tc.err))
		})
	}
}

func TestConfigurationMessageNamesKey(t *testing.T) {
	err := apperrors.Configuration("SMTP_HOST")
	assert.Equal(t, "Server misconfigured: SMTP_HOST is not set", err.Message)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
}

func TestHandleErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	apperrors.HandleError(w, apperrors.Collaborator("notify_admin", "Failed to send notifications", stderrors.New("smtp: 535 auth failed")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to send notifications"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "535")
}

func TestMessageOfUnknown(t *testing.T) {
	assert.Equal(t, "Internal server error", apperrors.MessageOf(stderrors.New("secret detail")))
}
