package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAnswerSystem(t *testing.T) {
	docs := []Document{{Content: "Phone A: 6000mAh"}, {Content: "Phone B: 120Hz"}}

	got, err := renderAnswerSystem("- budget: under $300", docs)
	require.NoError(t, err)

	assert.Contains(t, got, "MEMORY:\n- budget: under $300")
	assert.Contains(t, got, "CONTEXT:\nPhone A: 6000mAh\n\nPhone B: 120Hz")
	assert.Contains(t, got, "what did I ask first?")
	assert.Contains(t, got, "TL;DR")
}

func TestStuffDocumentsEmpty(t *testing.T) {
	assert.Equal(t, noDocumentsContext, stuffDocuments(nil))
}
