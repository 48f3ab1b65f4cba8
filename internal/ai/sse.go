package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

const (
	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
)

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// FrameDecoder reads an OpenAI-style chat-completion SSE body one line at a
// time. Lines that are not data frames, and data frames that are not valid
// JSON, are skipped.
type FrameDecoder struct {
	sc   *bufio.Scanner
	done bool
}

func NewFrameDecoder(r io.Reader) *FrameDecoder {
	sc := bufio.NewScanner(r)
	// Increase scanner buffer for long JSON lines.
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)
	return &FrameDecoder{sc: sc}
}

// Next returns the next non-empty content delta. It returns io.EOF after
// "data: [DONE]" or when the body ends.
func (d *FrameDecoder) Next() (string, error) {
	if d.done {
		return "", io.EOF
	}
	for d.sc.Scan() {
		line := bytes.TrimSpace(d.sc.Bytes())
		if !bytes.HasPrefix(line, []byte(sseDataPrefix)) {
			continue
		}
		data := bytes.TrimSpace(line[len(sseDataPrefix):])
		if string(data) == sseDone {
			d.done = true
			return "", io.EOF
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			d.done = true
			return "", &FrameError{Message: chunk.Error.Message}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	d.done = true
	if err := d.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// bodyStream adapts a decoder over an HTTP body to Stream.
type bodyStream struct {
	body io.ReadCloser
	next func() (string, error)
}

func (s *bodyStream) Recv() (string, error) { return s.next() }
func (s *bodyStream) Close() error          { return s.body.Close() }
