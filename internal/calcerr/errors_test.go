package calcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFollowsWrappedChain(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	netErr := Network(cause, "GET %s", "https://quotes.example")
	assert.ErrorIs(t, netErr, ErrNetwork)
	assert.ErrorIs(t, netErr, cause)
	assert.Equal(t, "network_error", Kind(netErr))

	unavailable := fmt.Errorf("%w: USD->GBP: %w", ErrConversionUnavailable, netErr)
	assert.Equal(t, "conversion_unavailable", Kind(unavailable))

	assert.Equal(t, "validation_error", Kind(Validation("quantity %d", -1)))
	assert.Equal(t, "parse_error", Kind(Parse("rate %q", "abc")))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
	assert.Equal(t, "", Kind(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "exchange rate unavailable, please retry or enter manually",
		UserMessage(fmt.Errorf("wrap: %w", ErrConversionUnavailable)))
	assert.Contains(t, UserMessage(Validation("bad")), "invalid amounts")
	assert.Equal(t, "", UserMessage(nil))
}
