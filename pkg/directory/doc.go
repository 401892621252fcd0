// Package directory provides the employee directory the acknowledgment
// engine fans out over, plus the role-policy resolver.
//
// Directory is the lookup interface; FileDirectory loads a YAML roster
// and supports reload, StaticDirectory is an in-memory implementation
// suitable for tests. Resolver combines the store's role-policy mappings
// with the directory to answer which policies a role must acknowledge
// and which employees a policy affects. Mapping lookups are cached with
// a bounded TTL so mapping edits surface within one TTL window.
package directory
