// Package schema holds the metadata registry and the schema synthesizer.
//
// Build walks an ir.Model once and produces an immutable Registry: one
// QNameInfo per queryable qualified name, numeric ids for entity types,
// composite classes and enum constants, and the dialect-specific DDL for
// every table. The registry is never mutated after Build returns; a
// reindex builds a new one.
//
// # Persisted Layout
//
// All table names are prefixed (SQLite) or qualified (Postgres) by the
// configured schema name:
//
//   - entities: one row per entity (pk, type id, identity, modified, version, application version)
//   - entity_types_join: (entity pk, type id) for the declared type and every supertype
//   - all_qnames: (qname_id, entity pk) for every indexed value row
//   - qnames, entity_types, used_classes, enum_lookup: id dictionaries
//   - app_version: single row with the application and layout versions
//   - qname_<n>: one value table per qualified name
//
// Value rows reference all_qnames with ON DELETE CASCADE, so deleting an
// entity's all_qnames rows clears every indexed value in one statement.
//
// # Collection Paths
//
// Collection rows carry a path: "*" marks the collection root and each
// item appends ".<index>". The pattern in CollectionItemPattern matches
// every item below a property root at any nesting depth.
package schema
