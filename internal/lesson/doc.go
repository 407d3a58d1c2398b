// Package lesson turns a word pair into a persisted storyboard lesson.
//
// Generator plans the storyboard, then walks the frames in global order,
// generating an image and narration for each one, writing both through the
// asset store and appending a frame row. The first image of every story
// becomes that story's anchor and is passed as the sole reference for the
// story's later frames. A synthesized conclusion frame closes the lesson.
package lesson
