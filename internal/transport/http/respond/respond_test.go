package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("orderDate", "is required"), http.StatusBadRequest},
		{fmt.Errorf("%w: unexpected end", errs.ErrMalformedInput), http.StatusBadRequest},
		{fmt.Errorf("%w: order 1", errs.ErrDuplicatePayment), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", errs.ErrAddressResolution, errors.New("x")), http.StatusBadRequest},
		{fmt.Errorf("%w: 5", errs.ErrOrderNotFound), http.StatusNotFound},
		{errs.ErrPaymentNotFound, http.StatusNotFound},
		{errs.ErrDeliveryItemNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: deadline", errs.ErrTransactionTimeout), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, "test", errs.Validation("orderTimes", "must not be empty"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeValidation, body["code"])
	assert.Equal(t, "orderTimes", body["field"])
	assert.Contains(t, body["error"], "must not be empty")
	assert.NotContains(t, body, "retryable")
}

func TestErrorCodePerKind(t *testing.T) {
	viper.Set("app.env", "production")
	t.Cleanup(func() { viper.Set("app.env", "") })

	dbErr := errors.New(`ERROR: null value in column "line1" (SQLSTATE 23502)`)
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		detail string
	}{
		{"validation", errs.Validation("orderTimes", "must not be empty"), http.StatusBadRequest, CodeValidation, "must not be empty"},
		{"malformed", fmt.Errorf("%w: unexpected end", errs.ErrMalformedInput), http.StatusBadRequest, CodeMalformedInput, ""},
		{"duplicate", fmt.Errorf("%w: order 1", errs.ErrDuplicatePayment), http.StatusBadRequest, CodeDuplicatePayment, ""},
		{"receipt", fmt.Errorf("%w: payment 3", errs.ErrReceiptAlreadyAttached), http.StatusConflict, CodeReceiptAttached, ""},
		{"address", fmt.Errorf("%w: %w", errs.ErrAddressResolution, dbErr), http.StatusBadRequest, CodeAddressResolution, ""},
		{"order", fmt.Errorf("%w: 5", errs.ErrOrderNotFound), http.StatusNotFound, CodeOrderNotFound, ""},
		{"payment", errs.ErrPaymentNotFound, http.StatusNotFound, CodePaymentNotFound, ""},
		{"item", errs.ErrDeliveryItemNotFound, http.StatusNotFound, CodeDeliveryItemMissing, ""},
		{"timeout", errs.ErrTransactionTimeout, http.StatusServiceUnavailable, CodeTransactionTimeout, ""},
		{"internal", dbErr, http.StatusInternalServerError, CodeInternal, ""},
	}

	messages := map[string]string{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, "test", tt.err)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["code"])
			if tt.detail == "" {
				assert.NotContains(t, body, "error")
			} else {
				assert.Equal(t, tt.detail, body["error"])
			}
			assert.NotContains(t, rec.Body.String(), "SQLSTATE")

			msg, _ := body["message"].(string)
			require.NotEmpty(t, msg)
			assert.NotContains(t, messages, msg, "message shared with %s", messages[msg])
			messages[msg] = tt.name
		})
	}
}

func TestErrorTimeoutIsRetryable(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, "test", errs.ErrTransactionTimeout)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, true, decode(t, rec)["retryable"])
}

func TestErrorHidesDetailsInProduction(t *testing.T) {
	viper.Set("app.env", "production")
	t.Cleanup(func() { viper.Set("app.env", "") })

	rec := httptest.NewRecorder()
	Error(rec, "test", errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, decode(t, rec), "error")
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, "Created", map[string]int{"count": 2})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"count": float64(2)}, body["data"])
}
