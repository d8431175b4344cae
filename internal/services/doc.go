// Package services defines shared utilities consumed by the pipeline stages and
// the external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and sequence names for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the incident kinds operators see in run reports.
//   - The Incident record every stage uses to report a sequence it could not
//     advance and left in place.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
