// Package core turns delimited text into relational tables.
//
// It holds the whole import pipeline independent of the store backend and
// of any CLI or HTTP surface, so the same code serves both front ends and
// the tests.
//
// # Pipeline
//
// One import session handles one source:
//
//  1. [OpenSource] detects gzip, bzip2 or xz by magic bytes, decodes the
//     charset, skips a BOM and replaces invalid UTF-8.
//  2. [Sniff] picks the delimiter and quoting convention from the first
//     SniffLines non-empty lines.
//  3. [NewRecordReader] yields one [Record] per Next call until io.EOF.
//  4. [InferSchema] reads up to SampleSize records (plus a possible header)
//     and widens each column along INTEGER < REAL < TEXT.
//  5. [SchemaBuilder] names the columns and creates (or checks) the table.
//  6. [Coercer] converts every data record; [Loader] inserts the typed rows
//     in batches.
//
// Rows that fail coercion are handled by the [InvalidRowPolicy]: warn keeps
// going and reports each one to the [DiagnosticSink], ignore keeps going
// silently, fail stops at the first one after committing the rows already
// accepted.
//
// # Concurrency
//
// [Service] runs many sessions at once under an [ImportLimiter]. Sessions
// share one [Store]; table creation and each insert batch hold the
// [WriteGate], so parsing and coercion run in parallel while writes are
// serialized.
//
// # Error Handling
//
// Fatal errors are typed: [AmbiguousDelimiterError], [SchemaConflictError]
// and [SourceReadError]. Per-row failures are [RowCoercionError]. [MapError]
// turns any of them into a short message with a support code:
//
//   - SNIFF001, SCHEMA001: detection and table errors
//   - SRC001-SRC004: source stream errors
//   - ROW001-ROW004: rejected rows
//   - DB001-DB008: store errors
//   - IMP001-IMP005: session errors (busy, cancelled, timed out)
package core
