package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentityForErrorsIs(t *testing.T) {
	err := Clone(ErrConflictingDecision, "request 7 appears in both sets")
	require.True(t, errors.Is(err, ErrConflictingDecision))
	require.False(t, errors.Is(err, ErrAlreadyFinalized))
	assert.Equal(t, "request 7 appears in both sets", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("decide: %w", ErrMeetingNotFinished)
	require.Equal(t, ErrMeetingNotFinished.Code, FromError(wrapped).Code)
	require.Nil(t, FromError(nil))
}
