/*
Package events provides an in-memory broker for notifying consumers of
committed writes against an Index.

The broker is topic-agnostic: every subscriber receives every published
Event, buffered 50 deep per subscriber and 100 deep on the publish side,
with a full subscriber buffer dropping rather than blocking the
publisher. indexcore.Index publishes to an attached Broker after each
successful ApplyDocuments, DeleteDocuments, and UpdateSettings commit —
attaching one is optional; an Index with no broker skips publishing. The
one exception is UpdateSettings' reindex-started event, published from
inside the write transaction when the replay begins.
*/
package events
