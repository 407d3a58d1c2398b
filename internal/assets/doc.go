// Package assets stores generated lesson media.
//
// Blobs are addressed by a relative path of the form
// "<folder>/<lessonID>/frame-<index>.<ext>". FilesystemStore keeps them under
// a local root directory; MinIOStore keeps them as objects in an S3 bucket and
// can mint presigned download URLs.
package assets
