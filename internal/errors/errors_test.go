package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeNone},
		{Unavailable("chain", "AAPL", errors.New("timeout")), CodeDataUnavailable},
		{fmt.Errorf("lookup: %w", ErrSymbolNotFound), CodeDataUnavailable},
		{&WhitelistError{Symbol: "600519.SS", Market: "CN"}, CodeNotWhitelisted},
		{fmt.Errorf("%w %q", ErrInvalidStrategy, "collar"), CodeInvalidStrategy},
		{NewContractError(0, "strike", "must be positive"), CodeInvalidInput},
		{NewValidationError("symbol", "", "required"), CodeInvalidInput},
		{ErrNoEligibleContracts, CodeNoEligibleContracts},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), "%v", tt.err)
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("underlying", "SPY", cause)

	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, Unavailable("chain", "SPY", nil), ErrDataUnavailable)
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, Wrapf(nil, "ignored"))
	err := Wrapf(ErrConfigInvalid, "markets.%s.margin_rate", "us")
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Equal(t, "markets.us.margin_rate: invalid configuration", err.Error())
}
