// Package placement holds the overlay placement state machine.
//
// Positions are percentages of the viewport with (0,0) at the top-left and
// are always clamped to [0,100]. Scales have two ranges: manual zoom moves in
// steps of 0.2 within [0.2,3], while applied suggestions land in [1.5,5].
//
// Phases:
//
//	idle ──apply──▶ suggested ──drag/zoom──▶ user-overridden
//	  ▲                                            │
//	  └──────────────────reset─────────────────────┘
//
// Reset from any phase returns to idle at (50,50).
package placement
