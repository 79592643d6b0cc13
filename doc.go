// Package chronos provides a branching, time-indexed fact store for fictional
// universes; it records how entities (universes, timelines, planets,
// characters, items, rules...) change over time, and answers what an entity
// looked like at a given moment in a given version of history.
//
// The store is made of four cooperating parts, all reached through a Store:
//
//   - The entity registry owns entity identities and their parent/child
//     hierarchy (see Store.CreateEntity).
//   - The spacetime tree owns timelines and their branch ancestry. A spacetime
//     without a parent is canonical; any other spacetime is divergent and
//     inherits the history of its parent up to its branch time (see
//     Store.CreateSpacetime).
//   - The fact log is an append-only record of attribute assignments (see
//     Store.RecordFact).
//   - The state resolver computes the effective attributes of an entity at a
//     (spacetime, tick) viewpoint by walking the ancestry chain nearest-first
//     (see Store.State).
//
// A Store delegates persistence to an Engine. This module ships three engines:
// memengine (volatile, in-process), sqliteengine (a local SQLite file) and
// neo4jengine (a Neo4j graph). All of them pass the enginetest suite.
//
// Callers hold identifiers (EntityID) and copies of values, never references
// into the store; every command is applied atomically by the engine before it
// is acknowledged.
package chronos
