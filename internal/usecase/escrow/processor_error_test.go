package escrow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

func TestProcessorError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      apperror.ErrorCode
		status    int
		retryable bool
	}{
		{"отказ", fmt.Errorf("%w: limit", payment.ErrDeclined), apperror.ErrCodePaymentDeclined, http.StatusPaymentRequired, false},
		{"таймаут", context.DeadlineExceeded, apperror.ErrCodeProcessorTimeout, http.StatusGatewayTimeout, true},
		{"шлюз недоступен", payment.ErrUnavailable, apperror.ErrCodeProcessorError, http.StatusBadGateway, true},
		{"неизвестная ошибка", errors.New("tls: handshake failure"), apperror.ErrCodeProcessorError, http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := processorError(tt.err)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.retryable, appErr.Retryable())
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, processorError(nil))
	assert.Same(t, context.Canceled, processorError(context.Canceled))
}
