// Package core provides the orchestration logic for cohort matching.
//
// This package holds every rule of the matching workflow independent of any
// UI or transport layer. The web server and the psm command both drive it
// through the same [Orchestrator] methods and render the same [View].
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Workflow: A value-type state machine over two cohort slots, the
//     selected covariates and the last match outcome.
//   - Orchestrator: One session. It serializes actions on a Workflow and
//     performs file reads and matcher calls outside its lock.
//   - Service: The set of live sessions in a host process, sharing one
//     [Matcher] and one [MatchLimiter].
//   - Matcher: The remote matching service, implemented over HTTP by the
//     matcher package and by fakes in tests.
//
// # Workflow States
//
//	idle            no file loaded in either slot
//	files_selected  at least one slot loaded, not yet matchable
//	submittable     both slots loaded with identical headers
//	matching        a matcher call is in flight
//	succeeded       the last call returned a matched control cohort
//	failed          the last call failed
//
// Every change to a slot or to the covariate selection bumps the workflow
// generation. A matcher response is applied only if the generation it was
// issued under is still current, so a slow response never overwrites newer
// files.
//
// # Match Flow
//
//  1. Client calls [Orchestrator.Load] for the experiment and control slots
//  2. The file is read up to the size cap and parsed with [ParseTable]
//  3. [HeadersMatch] decides whether the two tables can be matched
//  4. [Orchestrator.SubmitColumns] applies the covariates and sends both
//     tables to the matcher
//  5. [Orchestrator.Export] serializes the result with [ToCSVText]
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (read, format, size)
//   - SCH001: Header mismatch between the two cohorts
//   - WF001-WF005: Workflow preconditions and stale responses
//   - SVC001-SVC004: Matching service failures
//   - UPL002-UPL006: Capacity and session errors
package core
