package ranking

import "github.com/RoaringBitmap/roaring/v2"

// GeoCollaborator resolves geo distance ranking for a universe of
// docids. §6 keeps the geo backend interface-only: pkg/ranking only
// defines the seam a concrete backend plugs into.
type GeoCollaborator interface {
	// RankByDistance returns docids ordered nearest-first to the
	// configured origin, restricted to universe.
	RankByDistance(universe *roaring.Bitmap) ([]uint32, error)
}

// VectorCollaborator resolves nearest-neighbor ranking for a universe of
// docids against a query embedding. Interface-only for the same reason
// as GeoCollaborator (§6).
type VectorCollaborator interface {
	RankByScore(universe *roaring.Bitmap) ([]uint32, error)
}

// GeoSort and VectorSort delegate entirely to their collaborator,
// producing buckets of one docid each in the collaborator's order so
// downstream rules (if any are stacked above) still see individually
// rankable units.
type externalSort struct {
	name string
	rank func(universe *roaring.Bitmap) ([]uint32, error)

	ordered []uint32
	pos     int
	done    bool
}

func (r *externalSort) Name() string { return r.name }

func (r *externalSort) StartIteration(_ *Context, universe *roaring.Bitmap, _ []int) error {
	r.pos = 0
	r.done = universe == nil || universe.IsEmpty()
	if r.done {
		return nil
	}
	ordered, err := r.rank(universe)
	if err != nil {
		return err
	}
	r.ordered = ordered
	return nil
}

func (r *externalSort) NextBucket() (*Bucket, bool, error) {
	if r.done || r.pos >= len(r.ordered) {
		return nil, false, nil
	}
	bm := roaring.New()
	bm.Add(r.ordered[r.pos])
	r.pos++
	return &Bucket{Docids: bm, Label: r.name}, true, nil
}

func (r *externalSort) EndIteration() {}

// NewGeoSort returns a rule ranking a universe by c's resolved distance
// order.
func NewGeoSort(c GeoCollaborator) Rule {
	return &externalSort{name: "geo_sort", rank: c.RankByDistance}
}

// NewVectorSort returns a rule ranking a universe by c's resolved
// similarity score order.
func NewVectorSort(c VectorCollaborator) Rule {
	return &externalSort{name: "vector_sort", rank: c.RankByScore}
}
