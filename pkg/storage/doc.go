// Package storage exports extracted notes to disk.
//
// Each note gets its own directory named after the note id:
//
//	notes/
//	  67da6467000000000602ae8a/
//	    note.json
//	    0.jpg
//	    1.jpg
//
// Files are written to a temporary name and renamed into place, so an
// interrupted export never leaves a truncated note.json behind. The
// Manager indexes existing note directories on start so a resumed export
// can skip notes it already has.
//
// Usage:
//
//	manager, err := storage.NewManager("notes")
//	if err != nil {
//	    return err
//	}
//	if !manager.IsSaved(note.Detail.URL) {
//	    dir, err := manager.SaveNote(note, true)
//	    ...
//	}
package storage
