// Package story groups the branching-story engine.
//
// A story is a set of chapters keyed by integer id. Each chapter carries
// text with optional [[IF cond]]...[[ENDIF]] blocks and a list of options
// that link to other chapters and may assign player variables. Stories are
// content only; nothing here keeps player progress beyond one session.
//
// # Packages
//
// Domain:
//   - domain/gamestate: player variables and their typed values
//   - domain/condition: parse and evaluate condition expressions
//   - domain/render: expand conditional blocks against a state
//   - domain/graph: the chapter graph and its JSON/YAML codec
//   - domain/validate: severity-classified graph checks
//   - domain/play: one player's walk through a story
//
// Storage:
//   - storage: story and chapter store contracts
//   - storage/sqlite: SQLite implementation with embedded migrations
//   - core/filter: AIP-160 filters for story listings
//
// Presentation:
//   - tui: terminal player built on bubbletea
//
// # Flow
//
// Story files are decoded by graph, checked by validate and written to the
// store by the importer tool. The player and the scenario runner read
// chapters back through play.ChapterSource, either from a file or the
// store.
//
// # Limitations
//
//   - [[IF]] blocks do not nest and have no [[ELSE]].
//   - Option conditions are advisory; they never block a choice.
//   - State is not persisted between sessions.
package story
