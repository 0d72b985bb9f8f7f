// Package memhost is an in-process image host used by tests and the console
// transport.
package memhost

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/dmitrijs2005/supplierbot/internal/common"
)

// Operations that can be made to fail with FailOn.
const (
	OpUpload = "upload"
	OpRename = "rename"
	OpDelete = "delete"
)

const urlPrefix = "mem://images/"

type Host struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]error
	calls   []string
}

func New() *Host {
	return &Host{
		objects: map[string][]byte{},
		fail:    map[string]error{},
	}
}

// URL returns the address a picture stored under name is served from.
func URL(name string) string {
	return urlPrefix + url.PathEscape(name)
}

// FailOn makes every following call of op return err. A nil err clears it.
func (h *Host) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.fail, op)
		return
	}
	h.fail[op] = err
}

func (h *Host) Upload(ctx context.Context, name string, data []byte) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, OpUpload+" "+name)
	if err := h.fail[OpUpload]; err != nil {
		return "", err
	}

	h.objects[name] = append([]byte(nil), data...)
	return URL(name), nil
}

func (h *Host) Rename(ctx context.Context, oldName, newName string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, OpRename+" "+oldName+" "+newName)
	if err := h.fail[OpRename]; err != nil {
		return "", err
	}

	data, ok := h.objects[oldName]
	if !ok {
		return "", fmt.Errorf("image %q: %w", oldName, common.ErrorNotFound)
	}
	delete(h.objects, oldName)
	h.objects[newName] = data
	return URL(newName), nil
}

// Delete removes name. Missing pictures are not an error, as with S3.
func (h *Host) Delete(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, OpDelete+" "+name)
	if err := h.fail[OpDelete]; err != nil {
		return err
	}

	delete(h.objects, name)
	return nil
}

// Get returns the stored bytes of name.
func (h *Host) Get(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.objects[name]
	return data, ok
}

func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// Calls lists every operation attempted so far, failed ones included.
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}
