package common

import (
	"testing"

	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCode(0), Code(tracerr.Wrap(ErrMaxSupplyExceeded)))
	assert.Equal(t, ErrorCode(102), Code(ErrAlreadyApproved))
	assert.Equal(t, ErrorCodeUnknown, Code(tracerr.Wrap(assert.AnError)))
	assert.True(t, IsEngineError(tracerr.Wrap(ErrCooldownNotMet)))
	assert.False(t, IsEngineError(assert.AnError))

	codes := make(map[ErrorCode]error)
	for err, c := range errorCodes {
		_, dup := codes[c]
		assert.False(t, dup, err.Error())
		codes[c] = err
	}
}
