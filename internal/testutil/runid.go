package testutil

// RunID is the run id FixedRunIDGenerator uses when none is given.
const RunID = "0194b3a0-0000-7000-8000-000000000001"

// FixedRunIDGenerator returns the same run id every time, so the same
// scenario produces byte-identical audit documents.
//
// It satisfies ledger.RunIDGenerator.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id, or RunID when id is
// empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = RunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
