// Package updater walks a document database's change feed since a group's
// current sequence, runs each declared index's spatial function against
// changed documents, and drives the resulting adds/removes into the
// corresponding vtree. It keeps an idbtree mapping doc_id to each
// document's current emissions so that deleting or updating a document
// never requires re-running the spatial function against data that has
// already been removed from the source database.
package updater
