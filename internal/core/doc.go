// Package core implements the exam-scheduling import pipeline and the
// seating read models built on top of it.
//
// It depends only on the [store.Gateway] interface, so web handlers, the
// CLI and tests all drive the same code against PostgreSQL or the
// in-memory gateway.
//
// # Import Pipeline
//
// [Service.ImportSpreadsheet] runs a decoded spreadsheet through four stages:
//
//  1. [ValidateHeaders] rejects the batch when a required column is absent.
//  2. [NormalizeRows] converts cells to canonical text, dates (YYYY-MM-DD)
//     and start times (HH:MM); unreadable dates are skipped and counted.
//  3. [GroupSessions] partitions rows by subject, date, start time and room,
//     keeping first-appearance order.
//  4. [Reconciler.Reconcile] writes each group in turn: subject, room, exam
//     session, student identities and enrollments, then optionally asks the
//     [SeatGenerator] to seat the session.
//
// Groups are reconciled sequentially and imports are serialized by an
// [ImportLimiter]. The first failing group stops the import; earlier groups
// stay written. Every failure is an [*ImportAbortedError] carrying the
// partial [ImportResult].
//
// # Session Resolution
//
// Exam sessions are upserted on their natural key. When the store has no
// unique constraint for that key the reconciler falls back to reusing the
// first matching session or inserting a new one, and records a warning.
//
// # Identities
//
// Student profiles belong to the authentication system and are never
// created here. Existing profiles get their display name refreshed; any
// student id without a profile aborts the import with an
// [*UnresolvedIdentityError] naming the ids.
//
// # Error Handling
//
// [MapError] turns technical errors into a [UserMessage] with a support
// code (IMP, DB, FILE, SEAT, MAIL, RATE, ERR000).
package core
