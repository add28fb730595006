package schema

// Side selects one end of an edge.
type Side int

const (
	Left Side = iota
	Right
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Counter is a denormalized count kept on the record at one side of an edge.
type Counter struct {
	Side  Side
	Model string
	Field string
}

// Edge is the stored pair behind a many-to-many relation.
type Edge struct {
	Name       string
	LeftCol    string
	RightCol   string
	LeftModel  string
	RightModel string
	// Owner is the side that must equal the caller for the caller to add or
	// remove the edge.
	Owner Side
	// NoSelf forbids edges whose two ends are the same record.
	NoSelf   bool
	Counters []Counter
}

// Column returns the storage column of a side.
func (e Edge) Column(s Side) string {
	if s == Left {
		return e.LeftCol
	}
	return e.RightCol
}

// ModelOf returns the model stored on a side.
func (e Edge) ModelOf(s Side) string {
	if s == Left {
		return e.LeftModel
	}
	return e.RightModel
}

// Pair is one edge instance.
type Pair struct {
	Left  int64
	Right int64
}

// PairFrom builds a pair with local on side and remote on the other side.
func PairFrom(side Side, local, remote int64) Pair {
	if side == Left {
		return Pair{Left: local, Right: remote}
	}
	return Pair{Left: remote, Right: local}
}

// Get returns the id on side s.
func (p Pair) Get(s Side) int64 {
	if s == Left {
		return p.Left
	}
	return p.Right
}
