package fields

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// MaxFieldID is the largest id a field may be assigned; field 0 is
// reserved, so a map can hold at most MaxFieldID distinct fields.
const MaxFieldID = 65535

// Flags records, per field, which of the independent per-field roles of
// §4.D apply. Any combination is legal: a field can be both filterable
// and sortable, for instance.
type Flags struct {
	Searchable bool `json:"searchable"`
	Displayed  bool `json:"displayed"`
	Filterable bool `json:"filterable"`
	Sortable   bool `json:"sortable"`
	PrimaryKey bool `json:"primary_key"`
}

// Map is the insertion-ordered name<->id bijection plus per-field flags.
// A Map is not safe for concurrent use; §5 gives each write transaction
// its own copy loaded fresh and discards it at commit.
type Map struct {
	byName map[string]uint16
	byID   map[uint16]string
	flags  map[uint16]Flags
	order  []string
	nextID uint16
}

// New returns an empty map with the next allocated id starting at 1.
func New() *Map {
	return &Map{
		byName: make(map[string]uint16),
		byID:   make(map[uint16]string),
		flags:  make(map[uint16]Flags),
		nextID: 1,
	}
}

// InsertName performs a name-to-id insert: it returns the existing id if
// name is already mapped, otherwise allocates the next sequential id.
// Exceeding MaxFieldID fails with a Resource error (AttributeLimitReached).
func (m *Map) InsertName(name string) (uint16, error) {
	if id, ok := m.byName[name]; ok {
		return id, nil
	}
	if m.nextID == 0 || int(m.nextID) > MaxFieldID {
		return 0, apperr.Resource("attribute limit reached: cannot add field %q, %d fields already mapped", name, MaxFieldID)
	}
	id := m.nextID
	m.nextID++
	m.byName[name] = id
	m.byID[id] = name
	m.order = append(m.order, name)
	return id, nil
}

// ID returns the id for name, if mapped.
func (m *Map) ID(name string) (uint16, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Name returns the name for id, if mapped.
func (m *Map) Name(id uint16) (string, bool) {
	name, ok := m.byID[id]
	return name, ok
}

// SetFlags replaces the flags recorded for id. It is a no-op if id isn't
// mapped.
func (m *Map) SetFlags(id uint16, f Flags) {
	if _, ok := m.byID[id]; !ok {
		return
	}
	m.flags[id] = f
}

// Flags returns the flags recorded for id, or the zero value if id isn't
// mapped or has never had flags set.
func (m *Map) Flags(id uint16) Flags {
	return m.flags[id]
}

// Len returns the number of mapped fields.
func (m *Map) Len() int {
	return len(m.order)
}

// Names returns every mapped name in insertion order.
func (m *Map) Names() []string {
	return append([]string(nil), m.order...)
}

type wireEntry struct {
	Name  string `json:"name"`
	ID    uint16 `json:"id"`
	Flags Flags  `json:"flags"`
}

type wireMap struct {
	Entries []wireEntry `json:"entries"`
	NextID  uint16      `json:"next_id"`
}

// Encode serializes m into the single blob stored under the
// "fields-ids-map" key in BucketMeta.
func (m *Map) Encode() ([]byte, error) {
	w := wireMap{NextID: m.nextID}
	for _, name := range m.order {
		id := m.byName[name]
		w.Entries = append(w.Entries, wireEntry{Name: name, ID: id, Flags: m.flags[id]})
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, apperr.Internal(err, "fields: encode")
	}
	return data, nil
}

// Decode parses a blob previously produced by Encode.
func Decode(data []byte) (*Map, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var w wireMap
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperr.Corruption(err, "fields: decode fields-ids-map")
	}
	m := New()
	for _, e := range w.Entries {
		if e.ID == 0 || int(e.ID) > MaxFieldID {
			return nil, apperr.Corruption(fmt.Errorf("field id %d out of range", e.ID), "fields: decode fields-ids-map")
		}
		m.byName[e.Name] = e.ID
		m.byID[e.ID] = e.Name
		m.flags[e.ID] = e.Flags
		m.order = append(m.order, e.Name)
	}
	m.nextID = w.NextID
	if m.nextID == 0 {
		m.nextID = 1
	}
	return m, nil
}
