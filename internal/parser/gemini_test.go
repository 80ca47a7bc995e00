package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeExtraction(t *testing.T) {
	extraction, err := decodeExtraction(`{"procedure":"Стрижка","date":"п'ятниця","time_or_range":"після обіду"}`)
	require.NoError(t, err)
	assert.Equal(t, "Стрижка", extraction.Procedure)
	assert.Equal(t, "п'ятниця", extraction.Date)
	assert.Equal(t, "після обіду", extraction.TimeOrRange)
}

func TestDecodeExtractionMarkdownFence(t *testing.T) {
	extraction, err := decodeExtraction("```json\n{\"procedure\":\"Манікюр\",\"date\":\"\",\"time_or_range\":\"14:00\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Манікюр", extraction.Procedure)
	assert.Equal(t, "14:00", extraction.TimeOrRange)
}

func TestDecodeExtractionGarbage(t *testing.T) {
	_, err := decodeExtraction("я не JSON")
	assert.Error(t, err)

	_, err = decodeExtraction("")
	assert.Error(t, err)
}

func TestStubParserRecognizesNothing(t *testing.T) {
	extraction := StubParser{}.Parse(context.Background(), "хочу стрижку в п'ятницю")
	assert.Equal(t, Extraction{}, extraction)
}

func TestNewGeminiParserRequiresKey(t *testing.T) {
	_, err := NewGeminiParser(context.Background(), "", "gemini-2.5-flash", nil, 0, nil)
	assert.Error(t, err)
}
