package diag

import "sync/atomic"

// Built-in switch keys, one per engine subsystem.
const (
	RigidBody             Key = "rigidBody"
	CollisionWorld        Key = "collisionWorld"
	Constraints           Key = "constraints"
	DiscreteDynamicsWorld Key = "discreteDynamicsWorld"
	BoxBoxDetector        Key = "boxBoxDetector"
	Islands               Key = "islands"
	BVHTriangleMesh       Key = "bvhTriangleMesh"
	ConvexHull            Key = "convexHull"
	ConvexShape           Key = "convexShape"
	ShapeHull             Key = "shapeHull"
	StridingMesh          Key = "stridingMesh"
	GJK                   Key = "gjk"
	GJKDetector           Key = "gjkDetector"
	PersistentManifold    Key = "persistentManifold"
	VoronoiSimplex        Key = "voronoiSimplex"
	Solver                Key = "solver"
	Broadphase            Key = "broadphase"
	BoxShape              Key = "boxShape"
	GimpactShape          Key = "gimpactShape"
	GimpactAlgo           Key = "gimpactAlgo"
	GimpactBVH            Key = "gimpactBVH"
)

// Defaults returns a fresh copy of the built-in default table.
//
// Every switch is off except DiscreteDynamicsWorld, which has shipped
// enabled for as long as the table has existed.
func Defaults() []Switch {
	return []Switch{
		{Key: RigidBody, Value: false},
		{Key: CollisionWorld, Value: false},
		{Key: Constraints, Value: false},
		{Key: DiscreteDynamicsWorld, Value: true},
		{Key: BoxBoxDetector, Value: false},
		{Key: Islands, Value: false},
		{Key: BVHTriangleMesh, Value: false},
		{Key: ConvexHull, Value: false},
		{Key: ConvexShape, Value: false},
		{Key: ShapeHull, Value: false},
		{Key: StridingMesh, Value: false},
		{Key: GJK, Value: false},
		{Key: GJKDetector, Value: false},
		{Key: PersistentManifold, Value: false},
		{Key: VoronoiSimplex, Value: false},
		{Key: Solver, Value: false},
		{Key: Broadphase, Value: false},
		{Key: BoxShape, Value: false},
		{Key: GimpactShape, Value: false},
		{Key: GimpactAlgo, Value: false},
		{Key: GimpactBVH, Value: false},
	}
}

var installed atomic.Pointer[Registry]

// Install makes r the process registry. It succeeds at most once per
// process; later calls return ErrInstalled. Install must happen during
// startup, before readers call Default.
func Install(r *Registry) error {
	if r == nil {
		return &ConfigError{Reason: "nil registry"}
	}
	if !installed.CompareAndSwap(nil, r) {
		return ErrInstalled
	}
	return nil
}

// Default returns the process registry. If nothing was installed, the
// built-in defaults are installed and returned.
func Default() *Registry {
	if r := installed.Load(); r != nil {
		return r
	}
	installed.CompareAndSwap(nil, MustNew(Defaults()))
	return installed.Load()
}
