// Package transcribe turns audio into timestamped word spans using a
// speech-to-text service.
package transcribe

import (
	"context"
	"io"

	"github.com/kikitori/kikitori/internal/models"
)

// Transcriber converts one audio stream into word spans with segment-local
// timings. Implementations must return spans in temporal order.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) ([]models.WordSpan, error)
}
