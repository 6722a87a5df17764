// Package loader parses R4 StructureDefinitions and converts their element lists to the
// flat records profile trees are built from.
//
// Key components:
//   - Definition: a parsed StructureDefinition plus per-element mapping, condition and
//     contentReference data
//   - Store: definitions indexed by canonical URL, used to resolve extension profiles
//   - R4Converter: turns a snapshot or differential view into []element.Record
//
// Example usage:
//
//	store := loader.NewStore()
//	if _, err := store.LoadFromDirectory(dir); err != nil {
//		return err
//	}
//	conv := loader.NewR4Converter(store)
//	for _, def := range store.Definitions() {
//		records := conv.Snapshot(def, sink)
//		// build the tree from records
//	}
package loader
