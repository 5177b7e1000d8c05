package translate_test

import (
	"testing"

	"github.com/nulzo/ollama-bridge/internal/translate"
	"github.com/stretchr/testify/assert"
)

func TestEventFromLine_ContentLine(t *testing.T) {
	event, ok := translate.EventFromLine([]byte(`{"message":{"role":"assistant","content":"Hel"},"done":false}`))

	assert.True(t, ok)
	assert.False(t, event.Done())
	assert.Equal(t, "Hel", event.Delta)
}

func TestEventFromLine_TerminalLine(t *testing.T) {
	event, ok := translate.EventFromLine([]byte(`{"done":true,"done_reason":"stop","prompt_eval_count":9,"eval_count":3}`))

	assert.True(t, ok)
	assert.True(t, event.Done())
	assert.Equal(t, 9, event.Terminal.PromptEvalCount)
	assert.Equal(t, 3, event.Terminal.EvalCount)
}

func TestEventFromLine_MalformedLineDropped(t *testing.T) {
	event, ok := translate.EventFromLine([]byte(`{"message": not json`))

	assert.False(t, ok)
	assert.Nil(t, event)
}

func TestEventFromLine_EmptyContentSkipped(t *testing.T) {
	event, ok := translate.EventFromLine([]byte(`{"message":{"role":"assistant","content":""},"done":false}`))

	assert.False(t, ok)
	assert.Nil(t, event)
}

func TestEventFromLine_ThinkingOnlyLineStreams(t *testing.T) {
	event, ok := translate.EventFromLine([]byte(`{"message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}`))

	assert.True(t, ok)
	assert.Equal(t, "hmm", event.Delta)
}
