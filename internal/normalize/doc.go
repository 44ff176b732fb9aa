// Package normalize prepares uploaded photos for analysis.
//
// Phones commonly upload HEIC, which neither browsers nor Go's decoders read.
// Normalize sniffs the real format, converts HEIC/HEIF to JPEG through a
// Converter, and writes the result to a temporary file exposed as a Handle.
// The default ReencodeConverter decodes HEIC with goheif (cgo); build with
// -tags noheif to leave that decoder out.
// A failed conversion keeps the original bytes so the upload still proceeds;
// whether those bytes decode is decided later by DecodeRaster.
//
// Handles must be released by their owner on every path, including when a
// newer upload supersedes the one being processed.
package normalize
