// Package imagehost describes the remote picture storage. Pictures are keyed
// by entry name; every operation that leaves a picture in place returns its
// durable public URL.
package imagehost

import "context"

type Host interface {
	// Upload stores data under name, replacing any previous picture.
	Upload(ctx context.Context, name string, data []byte) (string, error)

	// Rename moves the picture stored under oldName to newName.
	Rename(ctx context.Context, oldName, newName string) (string, error)

	// Delete removes the picture stored under name.
	Delete(ctx context.Context, name string) error
}
