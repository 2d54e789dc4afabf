package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("open session: %w", ErrSessionAlreadyOpen)

	got := FromError(wrapped)
	assert.Equal(t, ErrSessionAlreadyOpen.Code, got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Nil(t, FromError(nil))
}

func TestIsComparesByCode(t *testing.T) {
	clone := Clone(ErrSessionNotOpen, "session abc is completed")
	assert.True(t, stderrors.Is(clone, ErrSessionNotOpen))
	assert.False(t, stderrors.Is(clone, ErrSessionAlreadyOpen))

	storage := Storage(stderrors.New("conn reset"), "failed to upsert record")
	assert.True(t, stderrors.Is(storage, ErrStorage))
	assert.Contains(t, storage.Error(), "conn reset")
}
