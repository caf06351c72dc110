// Package dispatch routes a submitted URL to the right playback path
// on an Apple TV.
//
// Classification decides the path: URLs on the configured deep-link
// allow list open as app links over Companion, everything else plays
// over AirPlay. Media URLs that point at a page rather than a stream
// are resolved first; high quality asks go through a server-side
// merge, and any transform failure degrades to direct playback of the
// best single stream. Every attempt produces a start entry and exactly
// one terminal entry in the activity log.
package dispatch
