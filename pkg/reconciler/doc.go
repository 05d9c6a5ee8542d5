/*
Package reconciler runs a background sweep-and-verify loop over an open
Index.

Each cycle removes orphaned pipeline.Run spill directories left behind
by a crashed process, then re-runs pkg/consistency's invariant checker
against a fresh read snapshot. Embedders with a long-lived process can
start a Reconciler alongside an Index to catch drift between explicit
CheckConsistency calls; short-lived CLI invocations typically skip it
and rely on the startup sweep in indexcore.Open instead.
*/
package reconciler
