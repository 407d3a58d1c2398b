// Package audiogen implements the narration audio port. ElevenLabsClient calls
// the ElevenLabs text-to-speech REST API; GoogleClient synthesizes MP3 through
// Google Cloud Text-to-Speech. Both return raw MP3 bytes.
package audiogen
