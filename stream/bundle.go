// Package stream reads the entries of FHIR Bundles one at a time, so that a bundle of
// StructureDefinitions can be fed to a worker pool without decoding it as a whole.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotBundle is returned for documents whose resourceType is not Bundle.
var ErrNotBundle = errors.New("document is not a Bundle")

// Entry is one resource of a bundle.
type Entry struct {
	// Index is the position of the entry in the bundle, or -1 for bundle-level errors
	Index int

	// FullURL is the fullUrl of the entry (if present)
	FullURL string

	// ResourceType is the type of resource in the entry
	ResourceType string

	// ResourceID is the id of the resource (if present)
	ResourceID string

	// URL is the canonical url of the resource (if present)
	URL string

	// Resource is the raw JSON of the resource
	Resource json.RawMessage

	// Error is set if the entry could not be decoded
	Error error
}

// Name returns the most specific identifier of the entry.
func (e *Entry) Name() string {
	switch {
	case e.URL != "":
		return e.URL
	case e.FullURL != "":
		return e.FullURL
	case e.ResourceID != "":
		return e.ResourceType + "/" + e.ResourceID
	}
	return fmt.Sprintf("entry[%d]", e.Index)
}

// BundleReader streams bundle entries.
type BundleReader struct {
	bufferSize int
	types      map[string]bool
}

// NewBundleReader creates a reader emitting every entry with a resource.
func NewBundleReader() *BundleReader {
	return &BundleReader{bufferSize: 100}
}

// WithBufferSize sets the channel buffer size.
func (b *BundleReader) WithBufferSize(size int) *BundleReader {
	if size > 0 {
		b.bufferSize = size
	}
	return b
}

// WithResourceTypes restricts the emitted entries to the given resource types.
func (b *BundleReader) WithResourceTypes(types ...string) *BundleReader {
	b.types = make(map[string]bool, len(types))
	for _, t := range types {
		b.types[t] = true
	}
	return b
}

// Read decodes the bundle from r, emitting entries in bundle order. The channel is
// closed at the end of the entry array or after the first bundle-level error.
func (b *BundleReader) Read(ctx context.Context, r io.Reader) <-chan *Entry {
	entries := make(chan *Entry, b.bufferSize)

	go func() {
		defer close(entries)
		emit := func(e *Entry) bool {
			select {
			case entries <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			emit(&Entry{Index: -1, Error: err})
		}

		decoder := json.NewDecoder(r)
		if err := expectDelim(decoder, '{'); err != nil {
			fail(fmt.Errorf("failed to read bundle: %w", err))
			return
		}

		for decoder.More() {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}

			token, err := decoder.Token()
			if err != nil {
				fail(fmt.Errorf("failed to read field: %w", err))
				return
			}
			field, _ := token.(string)

			switch field {
			case "resourceType":
				var rt string
				if err := decoder.Decode(&rt); err != nil {
					fail(fmt.Errorf("failed to read resourceType: %w", err))
					return
				}
				if rt != "Bundle" {
					fail(fmt.Errorf("%w: %s", ErrNotBundle, rt))
					return
				}
			case "entry":
				b.readEntries(ctx, decoder, emit, fail)
				return
			default:
				var skip json.RawMessage
				if err := decoder.Decode(&skip); err != nil {
					fail(fmt.Errorf("failed to skip field %s: %w", field, err))
					return
				}
			}
		}
	}()

	return entries
}

type bundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	URL          string `json:"url"`
}

func (b *BundleReader) readEntries(ctx context.Context, decoder *json.Decoder, emit func(*Entry) bool, fail func(error)) {
	if err := expectDelim(decoder, '['); err != nil {
		fail(fmt.Errorf("failed to read entry array: %w", err))
		return
	}

	for index := 0; decoder.More(); index++ {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}

		var raw bundleEntry
		if err := decoder.Decode(&raw); err != nil {
			// the decoder cannot resynchronise after a syntax error
			emit(&Entry{Index: index, Error: fmt.Errorf("failed to decode entry %d: %w", index, err)})
			return
		}
		if len(raw.Resource) == 0 {
			continue
		}

		var header resourceHeader
		if err := json.Unmarshal(raw.Resource, &header); err != nil {
			if !emit(&Entry{Index: index, FullURL: raw.FullURL, Error: fmt.Errorf("entry %d: %w", index, err)}) {
				return
			}
			continue
		}
		if b.types != nil && !b.types[header.ResourceType] {
			continue
		}

		if !emit(&Entry{
			Index:        index,
			FullURL:      raw.FullURL,
			ResourceType: header.ResourceType,
			ResourceID:   header.ID,
			URL:          header.URL,
			Resource:     raw.Resource,
		}) {
			return
		}
	}
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %v, got %v", want, token)
	}
	return nil
}

// ResourceType returns the top-level resourceType of a JSON document without decoding
// the rest of it.
func ResourceType(data []byte) (string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(decoder, '{'); err != nil {
		return "", err
	}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if token == "resourceType" {
			var rt string
			err := decoder.Decode(&rt)
			return rt, err
		}
		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return "", err
		}
	}
	return "", nil
}
