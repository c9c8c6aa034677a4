package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(modelID string) *BedrockClient {
	return NewBedrockClient(nil, modelID, 512, 0.1, 0.9, zap.NewNop())
}

func TestBuildPayloadAnthropic(t *testing.T) {
	c := newTestClient("anthropic.claude-3-haiku-20240307-v1:0")

	raw, err := c.buildPayload(ports.CompletionRequest{System: "sys", Prompt: "hello"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, anthropicVersion, body["anthropic_version"])
	assert.Equal(t, "sys", body["system"])
	assert.EqualValues(t, 512, body["max_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].(map[string]any)["content"])
}

func TestBuildPayloadTitan(t *testing.T) {
	c := newTestClient("amazon.titan-text-express-v1")

	raw, err := c.buildPayload(ports.CompletionRequest{System: "sys", Prompt: "hello"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "sys\n\nhello", body["inputText"])
	assert.Contains(t, body, "textGenerationConfig")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		body    string
		want    string
		wantErr bool
	}{
		{
			name:    "claude messages",
			modelID: "anthropic.claude-3-haiku-20240307-v1:0",
			body:    `{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]}`,
			want:    `{"a":1}`,
		},
		{
			name:    "claude empty",
			modelID: "anthropic.claude-3-haiku-20240307-v1:0",
			body:    `{"content":[]}`,
			wantErr: true,
		},
		{
			name:    "titan",
			modelID: "amazon.titan-text-express-v1",
			body:    `{"results":[{"outputText":"ok"}]}`,
			want:    "ok",
		},
		{
			name:    "titan empty",
			modelID: "amazon.titan-text-express-v1",
			body:    `{"results":[]}`,
			wantErr: true,
		},
		{
			name:    "generic generation field",
			modelID: "meta.llama3-8b-instruct-v1:0",
			body:    `{"generation":"hi"}`,
			want:    "hi",
		},
		{
			name:    "generic falls back to raw body",
			modelID: "mistral.mistral-7b-instruct-v0:2",
			body:    `{"outputs":[]}`,
			want:    `{"outputs":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestClient(tt.modelID).parseResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
