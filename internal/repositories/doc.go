// Package repositories implements SQLite persistence for users, prompt configs, schedules and credentials.
//
// Key Implementations:
//   - [UserRepository] : provisioned accounts. Deleting one cascades to everything it owns.
//   - [PromptRepository] : one prompt config per user, field-by-field updates and an idempotent covered-topic append
//   - [ScheduleRepository] : weekly (day, hour) entries plus the slot occupancy queries the scheduler reference-counts
//   - [CredentialRepository] : per-platform secrets, encrypted with [shared.Cipher] on write and decrypted on read
//
// [Store] groups the four on one connection. Every mutation is a single statement.
package repositories
