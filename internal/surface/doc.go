// Package surface turns detected feature points into a placement suggestion.
//
// Points are bucketed into an 8x8 grid over the percent plane. Cells with few
// features are treated as flat, uncluttered regions where a product could sit;
// those cells become candidates, scored by how empty they are. The suggestion
// prefers the best candidate in the lower part of the frame and scales the
// overlay by mean candidate confidence and the photo's aspect ratio.
//
// The heuristic makes no claim about real geometry. It is a deterministic
// function of its inputs and never fails: empty input yields a centered default.
package surface
