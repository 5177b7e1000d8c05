package translate

import (
	"encoding/json"

	"github.com/nulzo/ollama-bridge/internal/ollama"
	"github.com/nulzo/ollama-bridge/internal/platform/logger"
	"go.uber.org/zap"
)

// StreamEvent is one translated element of an upstream stream: either an
// incremental text fragment or the terminal line carrying final usage. A
// single input line never produces both.
type StreamEvent struct {
	// Delta is the incremental rendered text of a content line.
	Delta string

	// Terminal holds the parsed final line when the upstream flags done.
	Terminal *ollama.ChatResponse
}

func (e *StreamEvent) Done() bool {
	return e.Terminal != nil
}

// EventFromLine translates one newline-delimited JSON line into a stream
// event. Lines that parse but carry neither visible content nor the done flag
// are skipped; malformed lines are dropped with a diagnostic and never abort
// the stream.
func EventFromLine(line []byte) (*StreamEvent, bool) {
	var resp ollama.ChatResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		logger.Debug("dropping malformed stream line", zap.Error(err), zap.Int("bytes", len(line)))
		return nil, false
	}

	if resp.Done {
		return &StreamEvent{Terminal: &resp}, true
	}

	if text := RenderText(&resp.Message); text != "" {
		return &StreamEvent{Delta: text}, true
	}

	return nil, false
}
