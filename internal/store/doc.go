// Package store persists entity state into the synthesized relational
// schema and runs compiled queries against it.
//
// The store owns the lifecycle of the schema:
//   - InitConnection: creates, reconciles or rebuilds the schema and
//     publishes the registry snapshot
//   - IndexEntities: applies a batch of entity state changes in one
//     transaction on one pinned connection
//   - ConstructQuery, Find, Count: compile and run queries
//
// # Layout
//
// Every indexed value lives in the value table of its qualified name and
// is mirrored by a row in all_qnames keyed by (qname_id, entity_pk). Value
// rows reference their all_qnames row with ON DELETE CASCADE, so clearing
// an entity's values is a single DELETE on all_qnames.
//
// Collection rows carry a collection_path: "*" for the collection itself,
// "*.i" for items and "*.i.j" for items of nested collections. Composite
// rows store their class id; their properties are child rows whose
// parent_qname is the composite row's qname_id.
//
// # Database Configuration
//
// SQLite connections go through the "sqlite3_qindex" driver, which
// registers a regexp function and applies on every connection:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascading deletes depend on it
//
// PostgreSQL connections use the "pgx" driver from pgx/v5/stdlib.
package store
