package miniaudio

import (
	"bytes"
	"testing"
)

func TestPlaybackQueueDrainsInOrderThenSignalsOnce(t *testing.T) {
	drained := 0
	queue := &playbackQueue{
		pcm:           []byte{1, 2, 3, 4, 5, 6},
		bytesPerFrame: 2,
		onDrained:     func() { drained++ },
	}

	out := make([]byte, 4)
	queue.process(out, nil, 2)
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected first block [1 2 3 4], got %v", out)
	}

	out = []byte{9, 9, 9, 9}
	queue.process(out, nil, 2)
	if !bytes.Equal(out, []byte{5, 6, 0, 0}) {
		t.Fatalf("expected tail padded with silence, got %v", out)
	}
	if drained != 0 {
		t.Fatalf("expected no drain signal while bytes remain in flight, got %d", drained)
	}

	for range 3 {
		out = []byte{9, 9, 9, 9}
		queue.process(out, nil, 2)
		if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
			t.Fatalf("expected silence after drain, got %v", out)
		}
	}
	if drained != 1 {
		t.Fatalf("expected exactly one drain signal, got %d", drained)
	}
}
