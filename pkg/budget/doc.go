// Package budget implements the time-budget and cooperative-cancellation
// contract shared by the indexing pipeline and the ranking pipeline (§5,
// §4.I). A Budget is checked at coarse boundaries — chunk boundaries during
// indexing, bucket boundaries and FST-iteration edges during search — never
// in a tight inner loop, so the check itself never shows up in a profile.
//
// This generalizes the teacher's pkg/health Checker/Status pattern (a
// pluggable check, a deadline, a pass/fail outcome) from "is this container
// healthy" to "has this operation run out of time or been asked to stop".
package budget
