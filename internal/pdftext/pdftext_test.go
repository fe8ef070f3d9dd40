package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_TrimsText(t *testing.T) {
	got, err := Validate("  Page one.\n\nPage two.  \n")
	require.NoError(t, err)
	assert.Equal(t, "Page one.\n\nPage two.", got)
}

func TestValidate_WhitespaceOnlyIsNoText(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t \n"} {
		_, err := Validate(in)
		assert.ErrorIs(t, err, ErrNoText)
	}
}

func TestExtract_RejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("not a pdf at all"))
	assert.Error(t, err)
}
