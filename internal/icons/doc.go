// Package icons scales folder cover images into square PNG thumbnails,
// backed by an on-disk cache keyed by source path, size and modification
// time.
package icons
