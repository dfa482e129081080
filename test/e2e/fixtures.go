// Package e2e provides end-to-end tests; this file builds minimal audio
// fixtures and a scripted speech recognizer.
package e2e

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kikitori/kikitori/internal/models"
)

// FixtureSampleRate is the sample rate of generated test audio.
const FixtureSampleRate = 8000

// WriteWavFile generates a mono 16-bit sine tone wav of the given frame
// count at 8kHz.
func WriteWavFile(path string, frames int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, frames)
	for i := range data {
		data[i] = int(1000 * math.Sin(float64(i)/10))
	}
	enc := wav.NewEncoder(f, FixtureSampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: FixtureSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

// QueueTranscriber returns scripted word spans in call order, standing in
// for a speech-to-text service. Audio files must be indexed in the same
// order the scripts were queued.
type QueueTranscriber struct {
	mu      sync.Mutex
	scripts [][]models.WordSpan
	calls   int
}

// NewQueueTranscriber queues one transcript per expected recognition call.
func NewQueueTranscriber(scripts ...[]models.WordSpan) *QueueTranscriber {
	return &QueueTranscriber{scripts: scripts}
}

// Transcribe consumes the audio stream and pops the next queued transcript.
func (q *QueueTranscriber) Transcribe(_ context.Context, audio io.Reader) ([]models.WordSpan, error) {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.calls >= len(q.scripts) {
		return nil, fmt.Errorf("unexpected recognition call %d", q.calls+1)
	}
	spans := q.scripts[q.calls]
	q.calls++
	return spans, nil
}

// Calls reports how many recognition requests were made.
func (q *QueueTranscriber) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}
