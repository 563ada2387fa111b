package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextEmptyInput(t *testing.T) {
	text, err := ExtractText(nil)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("just some plain text, not a pdf"))
	assert.Error(t, err)
}
