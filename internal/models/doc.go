// Package models defines the entities persisted by the store and the transient values a pipeline run produces.
//
// Persistent entities, each implementing [Validator]:
//   - [User] : a provisioned account with its default voice
//   - [PromptConfig] : the one-per-user generation input and covered topics
//   - [ScheduleEntry] : a user's subscription to a weekly [Slot]
//   - [PlatformCredential] : encrypted per-platform secrets
//
// Transient values:
//   - [Script] and [Scene] : the model reply, written to script.json
//   - [VideoArtifact] : the files of one completed run
//
// A [Slot] is a (weekday, hour) pair whose [Slot.Key] names the OS trigger shared by every user in it.
package models
