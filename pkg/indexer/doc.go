// Package indexer is the single writer of the catalog search index.
//
// # Usage
//
//	st, _ := store.Open(path, store.Options{})
//	w, err := indexer.NewWriter(indexer.WithStore(st))
//	if err != nil {
//	    return err
//	}
//
//	err = w.IndexDocument(ctx, doc)   // replace-by-id, one commit
//	err = w.DeleteDocument(ctx, id)   // absent id is a no-op
//	err = w.ReindexAll(ctx, docs)     // full replace, one commit
//
// # Thread Safety
//
// Mutations are serialized by a writer-scoped mutex. Only one Writer may
// exist per store location; the store's file lock rejects a second process.
package indexer
