package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("TestError", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErr)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)
	})

	t.Run("modifiers do not mutate shared errors", func(t *testing.T) {
		ErrShared := New("shared").SetStatusCode(http.StatusNotFound)
		_ = ErrShared.Msg("changed")
		_ = ErrShared.Prefix("p")
		_ = ErrShared.Err(errors.New("cause"))
		assert.Equal(t, "shared", ErrShared.Error())
		assert.Empty(t, ErrShared.Unwrap())
	})

	t.Run("status code is inherited", func(t *testing.T) {
		ErrParent := New("parent").SetStatusCode(http.StatusConflict)
		ErrChild := ErrParent.New("child")
		assert.Equal(t, http.StatusConflict, ErrChild.StatusCode())
		assert.Equal(t, http.StatusBadRequest, ErrChild.SetStatusCode(http.StatusBadRequest).StatusCode())
	})

	t.Run("expanded message", func(t *testing.T) {
		ErrExpand := New("save failed").SetExpandError(true)
		err := ErrExpand.Err(errors.New("constraint violated"), errors.New("rolled back"))
		assert.Equal(t, "save failed: constraint violated;rolled back", err.ErrorAll())
		assert.Equal(t, "save failed", ErrExpand.ErrorAll())
	})

	t.Run("prefix and suffix", func(t *testing.T) {
		err := New("not found").Prefix("order").Suffix("42")
		assert.Equal(t, "order: not found: 42", err.Error())
	})

	t.Run("status code through fmt wrapping", func(t *testing.T) {
		ErrCoded := New("coded").SetStatusCode(http.StatusTeapot)
		wrapped := fmt.Errorf("outer: %w", ErrCoded)
		assert.Equal(t, http.StatusTeapot, StatusCodeOf(wrapped))
		assert.Equal(t, 0, StatusCodeOf(errors.New("plain")))
	})
}
