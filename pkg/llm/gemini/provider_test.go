package gemini

import (
	"context"
	"testing"

	"socialsync-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToContents(t *testing.T) {
	system, contents := toContents([]llm.Message{
		{Role: "system", Content: "rules"},
		{Role: "system", Content: "more rules"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "system", Content: "You just showed 2 events."},
	})

	assert.Equal(t, "rules\n\nmore rules", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, genai.RoleUser, contents[2].Role)
	assert.Equal(t, "SYSTEM: You just showed 2 events.", contents[2].Parts[0].Text)
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "")
	assert.Error(t, err)
}
