package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindStore, KindOf(errBoom))

	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindParse, Key: "k", Err: errBoom})
	assert.Equal(t, KindParse, KindOf(err))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, `wrapped: ParseError (key "k"): boom`, err.Error())

	assert.Equal(t, "ProtocolViolation: no reply", protocolViolation("", ErrNoReply).Error())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
