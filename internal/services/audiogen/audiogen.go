package audiogen

import "context"

// AudioGenerator turns narration text into encoded audio.
type AudioGenerator interface {
	GenerateAudio(ctx context.Context, text string) ([]byte, error)
}

// Extension is the file extension for audio produced by this package.
const Extension = "mp3"
