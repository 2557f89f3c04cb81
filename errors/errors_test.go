package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItCanCreateAnUnretriableError(t *testing.T) {
	baseErr := stderrors.New("something went wrong")
	err := Unretriable(baseErr)
	require.Error(t, err)
	require.Equal(t, baseErr.Error(), err.Error())
	require.True(t, IsUnretriable(err))
	require.Equal(t, baseErr, stderrors.Unwrap(err))
}

func TestWrappedUnretriableStaysUnretriable(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", NotFound("model missing", nil))
	require.True(t, IsUnretriable(err))
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestTransientIsRetriable(t *testing.T) {
	err := Transient("blob store 503", stderrors.New("http 503"))
	require.False(t, IsUnretriable(err))
	require.Equal(t, KindTransient, KindOf(err))
}

func TestKindDefaultsToInternal(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestPublicSurface(t *testing.T) {
	err := InsufficientCredits("not enough credits for 3 scenes")
	var e *Error
	require.True(t, stderrors.As(err, &e))
	code, msg := e.Public()
	require.Equal(t, "insufficient_credits", code)
	require.Equal(t, "not enough credits for 3 scenes", msg)
}
