package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesWrappedStatus(t *testing.T) {
	cause := errors.New("rows affected 0")
	err := fmt.Errorf("refund: %w", RefundFailure("refund not applied", cause))

	require.True(t, Is(err, StatusRefundFailure))
	require.False(t, Is(err, StatusBadRequest))
	require.ErrorIs(t, err, cause)
	require.False(t, Is(cause, StatusRefundFailure))
}

func TestBaseErrorMessage(t *testing.T) {
	require.Equal(t, "[BAD_REQUEST] no eligible campaign", BadRequest("no eligible campaign", nil).Error())
	require.Equal(t, "[NOT_FOUND] user: missing", NotFound("user", errors.New("missing")).Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:     http.StatusBadRequest,
		StatusInvalidPayment: http.StatusPaymentRequired,
		StatusRefundFailure:  http.StatusUnprocessableEntity,
		StatusNotFound:       http.StatusNotFound,
		StatusInternal:       http.StatusInternalServerError,
	}
	for status, code := range cases {
		require.Equal(t, code, status.HTTPStatus(), status)
	}
}

func TestWithDetails(t *testing.T) {
	err := ValidationFailed("invalid request", nil, WithDetails(Detail{Field: "user_id", Message: "required"}))

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Len(t, be.Details, 1)
	require.Contains(t, be.URL(), "error_code=VALIDATION_FAILED")
}
