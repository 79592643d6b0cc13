package chronos

import "fmt"

// EntityType classifies entities. The set is closed; see the Type constants.
type EntityType string

const (
	TypeUniverse  EntityType = "universe"
	TypeSpacetime EntityType = "spacetime"
	TypeGalaxy    EntityType = "galaxy"
	TypeSystem    EntityType = "system"
	TypePlanet    EntityType = "planet"
	TypeRegion    EntityType = "region"
	TypeCharacter EntityType = "character"
	TypeItem      EntityType = "item"
	TypeRule      EntityType = "rule"
)

// EntityTypes lists every valid EntityType.
var EntityTypes = []EntityType{
	TypeUniverse,
	TypeSpacetime,
	TypeGalaxy,
	TypeSystem,
	TypePlanet,
	TypeRegion,
	TypeCharacter,
	TypeItem,
	TypeRule,
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEntityType returns the EntityType named s.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown entity type %q", ErrConstraintViolation, s)
	}
	return t, nil
}

// Entity is a registered thing of a fictional universe. Entities are never
// deleted; see Store.RetireEntity for the tombstone convention.
type Entity struct {
	ID      EntityID
	Project ProjectID
	Type    EntityType
	// Parent is the zero EntityID for the root universe of a project, and the
	// containing entity for everything else.
	Parent EntityID
	// Seq is the creation sequence assigned by the engine. It is strictly
	// increasing within an engine and orders listings.
	Seq uint64
}

// IsRoot reports whether e is the root universe of its project.
func (e Entity) IsRoot() bool { return e.Parent.IsZero() }

// Spacetime is a timeline. The canonical spacetime of a project has no parent;
// a divergent spacetime inherits the history of ParentSpacetime up to
// BranchTime (inclusive) and evolves independently afterwards.
type Spacetime struct {
	Entity
	Name            string
	ParentSpacetime EntityID
	BranchTime      Tick
}

// IsCanonical reports whether s is the canonical spacetime of its project.
func (s Spacetime) IsCanonical() bool { return s.ParentSpacetime.IsZero() }

// Fact is a single, immutable assignment: entity.Attribute = Value, valid from
// ValidFrom onwards in Spacetime until superseded by a later fact of the same
// key.
type Fact struct {
	ID        FactID
	Entity    EntityID
	Spacetime EntityID
	Attribute string
	Value     Value
	ValidFrom Tick
}

// Ancestor is a link of an ancestry chain. Horizon is the branch time at which
// the previous (nearer) link of the chain diverged from this spacetime, or
// Forever for the first link. Resolution sees the link's own history up to
// Horizon.
type Ancestor struct {
	Spacetime Spacetime
	Horizon   Tick
}

// State is the effective attribute set of an entity at a viewpoint. Absent
// attributes were never assigned in any visible history.
type State map[string]Value

// Bootstrap holds the root universe and canonical spacetime of a project.
type Bootstrap struct {
	Universe Entity
	Canon    Spacetime
}

// Status is the lifecycle status of an entity as derived from its resolved
// state; see Store.Status.
type Status string

const (
	StatusAlive   Status = "alive"
	StatusDead    Status = "dead"
	StatusUnborn  Status = "unborn"
	StatusRetired Status = "retired"
)

// Well-known attribute names the store itself interprets.
const (
	AttrName      = "name"
	AttrStatus    = "status"
	AttrBirthTick = "birth_tick"
	AttrDeathTick = "death_tick"
	AttrRetired   = "retired"
)
