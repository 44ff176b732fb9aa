// Package session orchestrates a single overlay preview.
//
// A Session owns one placement controller and drives the background pipeline
// (normalize, decode, detect, analyze) on its own goroutine whenever the
// shopper picks a new photo. Results reach the controller as a pending
// suggestion; the shopper may apply it or keep placing the model by hand.
// Drag, zoom and reset stay available while analysis runs.
//
// Failures degrade rather than propagate. Only an undecodable photo produces
// an image error banner; every other failure offers the default suggestion.
// Renderer events (load, error, ar-status) update banners and AR state but
// never move the overlay.
package session
