// Package imagegen implements the image generation port used for storyboard
// frames. The Client talks to a Gemini-style generateContent endpoint, inlines
// reference images for visual continuity, and retries until the returned image
// is landscape 16:9 (or hands back the last image once attempts run out).
package imagegen
