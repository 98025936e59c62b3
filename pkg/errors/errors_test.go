package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentityForIs(t *testing.T) {
	err := Clone(ErrAlreadyPublished, "alert ALT-20250101-001 is already published")

	assert.True(t, stderrors.Is(err, ErrAlreadyPublished))
	assert.False(t, stderrors.Is(err, ErrInactiveAlert))
	assert.Equal(t, "alert ALT-20250101-001 is already published", err.Error())
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("publish: %w", Validation("radius out of range"))

	assert.True(t, stderrors.Is(err, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, FromError(err).Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(stderrors.New("boom"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "boom")
	assert.Nil(t, FromError(nil))
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("alert")
	assert.Equal(t, "alert not found", err.Message)
	assert.True(t, stderrors.Is(err, ErrNotFound))
}
