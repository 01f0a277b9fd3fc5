// Package gen is the core of the hubgen code generator.
//
// It turns entity schema documents into artifacts for independent
// consumers: typed models, API schemas, mapping templates and
// infrastructure constructs.
//
// # Architecture
//
// The pipeline follows this flow:
//
//	Schema document (schema/**/*.yaml)
//	        ↓
//	   load.Schema (decoded, positions kept)
//	        ↓
//	   Entity (validated, immutable)
//	        ↓
//	   OperationSet (derived + declared operations, collisions settled)
//	        ↓
//	   Emitters (one per target, run concurrently)
//	        ↓
//	   Writer (marker check, idempotent writes, manifest)
//
// # Key Types
//
//   - Entity: a validated schema document
//   - Operation: one API operation with its canonical Signature
//   - OperationSet: the only structure handed from the builder to emitters
//   - Emitter and GraphEmitter: per-entity and cross-entity renderers
//   - Processor: runs the pipeline and returns a Report
//   - Config: global configuration built with functional options
//
// Derivation logic lives in Derive and Build only. Emitters render what
// the OperationSet holds and make no naming or auth decisions of their own.
//
// # Error Handling
//
// Per-entity problems are reported as Diagnostics rather than returned
// errors, so one invalid document never stops its siblings:
//
//   - StructuralSchemaError: the entity fails (fatal)
//   - ConventionWarning, DuplicateOperationWarning: reported only
//   - EmitError: one target of one entity failed (fatal)
//   - WriteConflictError: a hand-authored file was left untouched
//   - DriftError: check mode found a file that would change (fatal)
//   - WriteError: an I/O failure (fatal)
//
// Diagnostics carry structured errors (SchemaError, GenerationError,
// WriteError, DriftError) that match sentinel values:
//
//	if errors.Is(d.Err, gen.ErrWriteConflict) {
//	    // Handle the skipped file
//	}
package gen
