package param

// ID stably identifies an optimization variable across the mesh, e.g.
// "pose/3/128" for drone 3's keyframe 128, or "lm/0009af" for a
// landmark. It is the caller's job to keep ids stable; the registry
// only interns them.
type ID string

// Parameter is an identified optimization variable: a stable id, a
// geometric kind, storage/tangent sizes, and the id of its
// solver-owner (spec.md §3). Kind and sizes never change once set by
// the first Register call for a given id.
type Parameter struct {
	ID          ID
	Kind        Kind
	Size        int
	TangentSize int
	Owner       int64
}

// DeriveOwner implements spec.md §3's ownership rule: poses are owned
// by the drone that produced the frame, landmarks are owned
// internally (no single agent), and everything else defaults to the
// id of its first observer.
func DeriveOwner(kind Kind, frameDroneID int64, firstObserverID int64) int64 {
	switch kind {
	case SE3Pose, YawPoseKind:
		return frameDroneID
	case InverseDepth:
		return InternalOwner
	default:
		return firstObserverID
	}
}

// NewParameter constructs a Parameter, filling in the fixed
// storage/tangent size for kinds whose geometry determines it. size
// must be supplied explicitly for Euclidean and SpeedBias parameters.
func NewParameter(id ID, kind Kind, owner int64, size int) Parameter {
	if storage, tangent, fixed := kind.defaultSize(); fixed {
		return Parameter{ID: id, Kind: kind, Size: storage, TangentSize: tangent, Owner: owner}
	}
	return Parameter{ID: id, Kind: kind, Size: size, TangentSize: size, Owner: owner}
}
