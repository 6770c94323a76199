// Package pipeline turns a user's prompt config into a short vertical video.
//
// # Stages
//
// A [Run] moves through [ScriptPending], [AudioPending], [ImagesPending] and
// [AssemblyPending] to [Done], strictly in that order. Any stage may end the run
// in [Failed]; the returned [StageError] names the stage and, for images, the
// 1-based scene.
//
//  1. Script: prompt the [services.TextGenerator], decode the reply strictly,
//     validate it against the wpm word cap, recompute durations, record the
//     title as covered and write script.json
//  2. Audio: synthesize all narration with the user's voice into narration.mp3
//  3. Images: one 1080x1920 image per scene, paced by a rate limiter
//  4. Assembly: a [Renderer] (ffmpeg) stitches the images over the audio
//
// Each collaborator call runs under its own timeout. Nothing is retried and
// files already written stay on disk after a failure.
//
// # Progress Reporting
//
// Runs report [ProgressUpdate] values on an optional channel. Sends never block.
//
// # Publishing
//
// With [Options.Post], a finished video goes to the [Publisher]. Platform
// failures are recorded in [Run.Posts] and never fail the run.
package pipeline
