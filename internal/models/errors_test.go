package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	testCases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "input", err: NewInputError("bad port", nil), want: KindInput},
		{name: "upstream", err: NewUpstreamError("search request failed", cause), want: KindUpstream},
		{name: "auth", err: NewAuthError("smtp login failed", cause), want: KindAuth},
		{name: "no data", err: NewNoDataError("nothing"), want: KindNoData},
		{name: "wrapped", err: fmt.Errorf("page 2: %w", NewUpstreamError("x", cause)), want: KindUpstream},
		{name: "plain", err: cause, want: KindInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestJobError_UnwrapAndDescribe(t *testing.T) {
	cause := errors.New("535 authentication failed")
	err := NewAuthError("smtp login failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "smtp login failed: 535 authentication failed", Describe(err))
	assert.Equal(t, "No data found.", Describe(NewNoDataError("No data found.")))
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusError.Terminal())
}
