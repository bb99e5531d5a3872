package operation

// Edge is a transition rule leaving From and entering To. It is eligible
// for a RoundResult whose Success equals ExpectedSuccess and, unless the edge
// is a wildcard, whose Status equals ExpectedStatus.
type Edge struct {
	From            string
	To              string
	ExpectedSuccess bool
	ExpectedStatus  Status
	Wildcard        bool

	// order is the declaration index among edges sharing From.
	order int
}

// EdgeOption configures an Edge.
type EdgeOption func(*edgeSpec)

type edgeSpec struct {
	success   bool
	status    Status
	hasStatus bool
}

// OnSuccess makes the edge eligible for successful results. This is the default.
func OnSuccess() EdgeOption {
	return func(s *edgeSpec) {
		s.success = true
	}
}

// OnFail makes the edge eligible for failed results.
func OnFail() EdgeOption {
	return func(s *edgeSpec) {
		s.success = false
	}
}

// OnStatus restricts the edge to results carrying exactly status.
func OnStatus(status Status) EdgeOption {
	return func(s *edgeSpec) {
		s.status = status
		s.hasStatus = true
	}
}

// AnyStatus makes the edge a catch-all for its success value. Edges without
// OnStatus are wildcards already; AnyStatus undoes an earlier OnStatus.
func AnyStatus() EdgeOption {
	return func(s *edgeSpec) {
		s.status = ""
		s.hasStatus = false
	}
}

func newEdge(from, to string, opts ...EdgeOption) Edge {
	spec := edgeSpec{success: true}
	for _, opt := range opts {
		opt(&spec)
	}
	return Edge{
		From:            from,
		To:              to,
		ExpectedSuccess: spec.success,
		ExpectedStatus:  spec.status,
		Wildcard:        !spec.hasStatus,
	}
}

// Matches reports whether the edge is eligible for r, ignoring precedence.
func (e Edge) Matches(r RoundResult) bool {
	if e.ExpectedSuccess != r.Success {
		return false
	}
	return e.Wildcard || e.ExpectedStatus == r.Status
}

// selectEdge picks the transition for r among edges, which must be in
// declaration order. An exact status match beats a wildcard; within the same
// precedence the first declared edge wins. It returns nil when r is terminal.
func selectEdge(edges []Edge, r RoundResult) *Edge {
	var wildcard *Edge
	for i := range edges {
		e := &edges[i]
		if e.ExpectedSuccess != r.Success {
			continue
		}
		if !e.Wildcard {
			if e.ExpectedStatus == r.Status {
				return e
			}
			continue
		}
		if wildcard == nil {
			wildcard = e
		}
	}
	return wildcard
}
