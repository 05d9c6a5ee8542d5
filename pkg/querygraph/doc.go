// Package querygraph expands a query string into the term-graph DAG of
// §4.H: quoted phrases become single phrase nodes, every other query
// token fans out into its candidate derivations (exact, prefix, typo,
// synonym, split, ngram), and positionally adjacent derivations are
// connected by edges so the ranking pipeline can walk every path from
// the single start node to the single end node.
//
// Nodes live in a flat arena (Graph.Nodes) addressed by a small integer
// id, and edges are (from, to) pairs of those ids, per §9's design note
// on avoiding ownership cycles in a graph built from shared sub-nodes
// (a split or synonym derivation can reconverge with the plain token
// path a few positions later). A node's Span records how many original
// query-token slots it consumes, since an ngram derivation spans more
// than one.
package querygraph
