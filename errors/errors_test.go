package errors_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/featurebasedb/cohort/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("Is", func(t *testing.T) {
		plain := errors.Errorf("uncoded error")
		missing := errors.New(errors.ErrIO, "no such file")
		cycle := errors.Newf(errors.ErrValidation, "cycle between %s and %s", "a", "b")

		tests := []struct {
			err    error
			target errors.Code
			exp    bool
		}{
			{
				err:    plain,
				target: errors.ErrIO,
				exp:    false,
			},
			{
				err:    missing,
				target: errors.ErrIO,
				exp:    true,
			},
			{
				err:    missing,
				target: errors.ErrSchema,
				exp:    false,
			},
			{
				err:    errors.Wrap(cycle, "building plan"),
				target: errors.ErrValidation,
				exp:    true,
			},
			{
				err:    errors.WithCode(io.ErrUnexpectedEOF, errors.ErrIO),
				target: errors.ErrIO,
				exp:    true,
			},
		}

		for i, test := range tests {
			t.Run(fmt.Sprintf("test-%d", i), func(t *testing.T) {
				got := errors.Is(test.err, test.target)
				assert.Equal(t, test.exp, got)
			})
		}
	})

	t.Run("WithCode", func(t *testing.T) {
		err := errors.WithCode(io.ErrUnexpectedEOF, errors.ErrIO)
		assert.Equal(t, io.ErrUnexpectedEOF.Error(), err.Error())
		assert.Equal(t, io.ErrUnexpectedEOF, errors.Unwrap(errors.Unwrap(err)))
		assert.Nil(t, errors.WithCode(nil, errors.ErrIO))
	})

	t.Run("CodeOf", func(t *testing.T) {
		assert.Equal(t, errors.ErrLock, errors.CodeOf(errors.Wrap(errors.New(errors.ErrLock, "x"), "y")))
		assert.Equal(t, errors.ErrUncoded, errors.CodeOf(errors.Errorf("x")))
	})

	t.Run("Message", func(t *testing.T) {
		err := errors.Wrapf(errors.New(errors.ErrSchema, "column KOEN missing"), "schema %s", "BEF")
		assert.Equal(t, "schema BEF: column KOEN missing", err.Error())
	})
}
