package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "결"+truncationMarker, tp.TruncateText("결제 완료", 4))
	assert.Equal(t, "anything", tp.TruncateText("anything", 0))
}

func TestSnippet(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	body := "Hello\r\n\r\n  your order\x00 has\tshipped.\xff"
	assert.Equal(t, "Hello your order has shipped.", tp.Snippet(body, 100))
	assert.Equal(t, "Hello"+truncationMarker, tp.Snippet(body, 5))
}
