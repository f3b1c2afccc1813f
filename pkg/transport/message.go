// Package transport defines the on-the-wire consensus message
// (spec.md §6) and the Transport interface this core consumes: an
// unreliable best-effort datagram bus that carries per-round broadcasts
// and READY/START/NON_DIST signals.
package transport

// Message is the structured broadcast payload spec.md §6 defines: the
// sender's identity, its round token, and — parallel-array style — the
// local primal values for every shared frame, camera extrinsic, and
// peer relative-coordinate frame.
type Message struct {
	ID             string  `codec:"id"`
	Timestamp      float64 `codec:"timestamp"`
	DroneID        int64   `codec:"drone_id"`
	SolverToken    uint64  `codec:"solver_token"`
	IterationCount int     `codec:"iteration_count"`

	FrameIDs   []string    `codec:"frame_ids"`
	FramePoses [][]float64 `codec:"frame_poses"`

	CamIDs    []string    `codec:"cam_ids"`
	Extrinsic [][]float64 `codec:"extrinsic"`

	RemoteDroneIDs      []int64     `codec:"remote_drone_ids"`
	RelativeCoordinates [][]float64 `codec:"relative_coordinates"`
}

// SignalKind is one of the three round-negotiation signals from
// spec.md §4.5's protocol table.
type SignalKind string

const (
	SignalReady   SignalKind = "READY"
	SignalStart   SignalKind = "START"
	SignalNonDist SignalKind = "NON_DIST"
)

// Signal is a round-negotiation control message: sender, kind, and the
// token it pertains to.
type Signal struct {
	Kind   SignalKind
	Sender int64
	Token  uint64
}
