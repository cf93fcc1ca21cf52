// Package dependency provides a small directed graph used to answer
// dependency queries for services and installable units.
//
// # Core Concepts
//
// Graph: a directed graph keyed by any comparable ID. Each node lists the IDs
// it depends on. Edges may point at IDs that are not nodes yet; those are
// reported as missing and the waiting dependents are still discoverable, so a
// dependency that is registered late can wake them up.
//
// Node: an ID plus its DependsOn list.
//
// # Queries
//
//   - Dependencies / Dependents: immediate edges in either direction
//   - Missing: dependencies that are not nodes
//   - WouldCycle: the cycle an insertion would close, checked before adding
//   - TopologicalOrder: Kahn's algorithm with a caller supplied tie-break;
//     nodes on or behind a cycle are returned separately
//
// The graph is not safe for concurrent use. The orchestrator guards its graph
// with the registry lock; the resolver builds a throwaway graph per call.
package dependency
