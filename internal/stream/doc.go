// Package stream prepares locally-servable streams for AirPlay playback.
//
// Two transforms exist: merging separately-hosted video and audio
// elementary streams (YouTube DASH) into one fragmented MP4, and
// remuxing HLS playlists into fragmented MP4 without re-encoding. Both
// run ffmpeg in the background feeding a bounded chunk channel.
//
// The handoff is fire-and-continue: dispatch starts a job, waits only
// until enough output is buffered to be servable, and responds with the
// job's serving URL. The Apple TV then pulls that URL independently for
// the duration of playback. Jobs expire after a TTL so abandoned
// transforms do not accumulate.
//
// URL resolution (page URL to direct stream URL) goes through yt-dlp.
package stream
