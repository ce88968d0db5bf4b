// Package core holds the contact-batch domain: reading contact tables,
// normalizing WhatsApp identifiers, rendering message templates and
// dispatching batches through a delivery backend.
//
// It is independent of HTTP and storage. The web handlers, the wabatch CLI
// and the tests all drive it through [Service].
//
// # Architecture
//
//   - Table reading: [ReadTable] turns CSV or spreadsheet bytes into a
//     [Table] with unique headers and rectangular rows.
//   - Contact rows: [ContactsFromTable] keeps rows with a non-blank NUMBERS
//     value. Each [ContactRow] answers case-insensitive lookups.
//   - Identifiers: [NormalizeWhatsAppID] produces "<digits>@c.us".
//   - Templates: [RenderMessage] fills {{ name }} placeholders and fails on
//     unknown names.
//   - Dispatch: [Dispatcher] runs a batch as a state machine over a
//     [BatchSession], which owns the backend login session for the batch.
//   - Service: [Service] stores uploads, serializes sends with a
//     [SessionLimiter] and exposes the contact file use-cases.
//
// # Batch Lifecycle
//
//  1. Idle to Reading: parse the contact source. Nothing is sent on failure.
//  2. Reading to Sending: every row is normalized, rendered and sent with
//     the session kept open, pausing between rows.
//  3. Sending to LoggingOut: the session is ended whether the batch
//     succeeded or failed.
//  4. Done or Failed: a failed batch returns a [*BatchError] carrying the
//     rows processed, the failing line and any logout error.
//
// # Concurrency
//
// The backend has a single WhatsApp session, so [Service] allows one send at
// a time. A second caller waits up to the configured busy wait and then gets
// BACKEND_BUSY. Batches run detached from the request context and stop only
// when the dispatcher's shutdown context is cancelled.
package core
