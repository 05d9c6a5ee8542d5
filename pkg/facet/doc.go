// Package facet builds and queries the hierarchical numeric facet
// levels of §4.G. Level 0, the exhaustive value->docids map, is written
// directly by the indexing pipeline's facet extractor the same way any
// other posting-list bucket is; this package rebuilds the summary levels
// above it (BuildLevels) and answers range queries by descending only
// into groups that partially overlap the requested range (RangeQuery),
// unioning fully-covered groups without inspecting their children.
package facet
