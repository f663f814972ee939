package converters

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{err: &FormatError{Reason: "too short"}, want: KindStructural},
		{err: &MissingColumnError{Label: "Time"}, want: KindSchema},
		{err: &DateError{Reason: "bad"}, want: KindField},
		{err: &TimeError{Value: "x"}, want: KindField},
		{err: fmt.Errorf("convert: %w", &AmbiguousSideError{Row: 4}), want: KindField},
	}
	for _, tc := range cases {
		kind, ok := KindOf(tc.err)
		assert.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.want, kind)
	}

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "could not find 'B (...)' column", (&MissingColumnError{Label: "B (...)"}).Error())
	assert.Equal(t, "invalid date format: 12-10-25", (&DateError{Value: "12-10-25", Reason: "invalid date format"}).Error())
	assert.Equal(t, "row 5: could not determine side: both B and S columns are empty or zero", (&AmbiguousSideError{Row: 4}).Error())

	_, convErr := strconv.Atoi("x")
	te := &TimeError{Row: 2, Value: "x:1", Err: convErr}
	assert.Contains(t, te.Error(), `row 3: invalid time format: "x:1"`)
	assert.ErrorIs(t, te, convErr)
}
