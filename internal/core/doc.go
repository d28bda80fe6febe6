// Package core provides the business logic for roster imports.
//
// This package holds all domain logic independent of any transport or
// storage driver. It is used by the HTTP handlers, the CLI and tests
// without modification.
//
// # Architecture
//
// An import moves one payload through five stages:
//
//   - Input: [DecodeInput] detects an .xlsx workbook or a JSON document and
//     yields [Sheet] values. Workbook cells are read raw; JSON sections are
//     pre-classified by name.
//   - Classification: [ClassifySheets] groups sheets by [EntityType] using
//     keyword rules over sheet names and headers. The first matching rule
//     wins: store, then schedule, then contact.
//   - Transform: [Transform] maps headers to fields with the entity's
//     ordered rules, drops blank rows and validates each record.
//   - Load: [Loader] writes records in parameter-bounded batches. Entities
//     with a conflict key are deduplicated and upserted.
//   - Orchestration: [Importer] runs the phases in order inside a [Scope]
//     and reports each transition on a [Run].
//
// # Entity Registry
//
// Entities are registered at init time using [Register]. Each
// [EntityDefinition] carries its header rules, record builder and row
// encoder. The tables subpackage registers stores, contacts and schedules:
//
//	core.Register(core.EntityDefinition{
//	    Info:    core.EntityInfo{Type: core.EntityStore, Table: "stores", ConflictKey: "store_number"},
//	    Rules:   storeRules,
//	    Build:   buildStore,
//	    Columns: storeColumns,
//	    Row:     storeRow,
//	    Key:     storeKey,
//	})
//
// # Runs
//
// A [Run] moves through idle, clearing, one loading state per entity and
// verifying before it completes or fails. Progress never decreases and a
// finished run is never modified. Every update is sent to a
// [ProgressSink]; the in-memory [Tracker] is always one of them.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - IMP001-IMP006: Import errors (unreadable input, missing sections, busy)
//   - UPL001-UPL005: Upload errors (no file, size, unknown import)
package core
