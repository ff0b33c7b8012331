/*
Package collection models the configured audio collections: media typing,
on-disk folder listing, and the persistent folder index.

Each collection is one base directory addressed by an integer index in the
URL. ListFolder scans a folder into playable files, subfolders, a cover
image and a description file. The Store keeps every folder key in SQLite
with trigram full-text search over folder names; the Indexer refreshes it
in the background. The Store also carries the auth session table so the
server needs a single database file.
*/
package collection
