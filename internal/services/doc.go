// Package services wraps the external collaborators the pipeline depends on.
//
// # Generators
//
// Each stage of a run talks to one narrow interface:
//   - [TextGenerator] : [GeminiClient] (raw REST) or [OpenAIClient] (structured output via a JSON schema)
//   - [SpeechSynthesizer] : [ElevenLabsService]
//   - [ImageGenerator] : [StabilityService]
//
// All REST clients share [APIService], which owns headers, timeouts and the
// mapping of non-2xx replies onto [shared.ErrAPIRequest].
//
// # Publishing
//
// [Publisher] posts a finished video to every platform the user has stored
// credentials for. Each platform has an [Uploader]:
//   - [YouTubeUploader] refreshes the OAuth token and uses the resumable upload protocol
//   - [InstagramUploader] stages the file in an [ObjectStore] ([MinioStore]) and publishes a Reel from the presigned URL
//
// TikTok has no uploader and is always reported as skipped.
//
// # Errors
//
//   - [shared.ErrConfig] : missing API key or unknown provider
//   - [shared.ErrAPIRequest] : collaborator rejected the request
//   - [shared.ErrTimeout] : context expired mid-request
//   - [shared.ErrMissingCredentials], [shared.ErrAuthFailed] : publishing preconditions
package services
