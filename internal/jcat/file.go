package jcat

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/gzip"
)

// Supported container version.
const (
	VersionMajor = 0
	VersionMinor = 1
)

// ErrFormat is returned when a container cannot be decoded.
var ErrFormat = errors.New("invalid jcat container")

// File is an ordered collection of items.
type File struct {
	VersionMajor int
	VersionMinor int
	Items        []*Item
}

// New creates an empty container of the supported version.
func New() *File {
	return &File{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
	}
}

// GetItem returns the item whose primary id or alias matches id.
// A new empty item is appended and returned when nothing matches.
func (f *File) GetItem(id string) *Item {
	for _, item := range f.Items {
		if item.ID == id {
			return item
		}
	}

	for _, item := range f.Items {
		if slices.Contains(item.AliasIDs, id) {
			return item
		}
	}

	item := NewItem(id)
	f.Items = append(f.Items, item)

	return item
}

// LookupItem returns the item matching id without creating one.
func (f *File) LookupItem(id string) (*Item, bool) {
	for _, item := range f.Items {
		if item.HasID(id) {
			return item, true
		}
	}

	return nil, false
}

// AddItem appends item unless that exact item is already present.
func (f *File) AddItem(item *Item) {
	if item == nil || slices.Contains(f.Items, item) {
		return
	}

	f.Items = append(f.Items, item)
}

type wireFile struct {
	VersionMajor int         `json:"JcatVersionMajor"`
	VersionMinor int         `json:"JcatVersionMinor"`
	Items        []*wireItem `json:"Items,omitempty"`
}

type wireItem struct {
	ID       string      `json:"Id"`
	AliasIDs []string    `json:"AliasIds,omitempty"`
	Blobs    []*wireBlob `json:"Blobs,omitempty"`
}

type wireBlob struct {
	Kind        BlobKind  `json:"Kind"`
	Flags       BlobFlags `json:"Flags"`
	Timestamp   int64     `json:"Timestamp,omitempty"`
	AppstreamID string    `json:"AppstreamId,omitempty"`
	Data        string    `json:"Data"`
}

// Save serializes the container as gzip-compressed JSON.
// The gzip header carries no timestamp so equal containers give equal bytes.
func (f *File) Save() ([]byte, error) {
	wf := wireFile{
		VersionMajor: f.VersionMajor,
		VersionMinor: f.VersionMinor,
	}

	for _, item := range f.Items {
		wi := &wireItem{
			ID:       item.ID,
			AliasIDs: item.AliasIDs,
		}

		for _, blob := range item.Blobs {
			wb := &wireBlob{
				Kind:        blob.Kind,
				Flags:       blob.Flags,
				Timestamp:   blob.Timestamp,
				AppstreamID: blob.AppstreamID,
			}

			if blob.IsUTF8() {
				wb.Data = string(blob.Data)
			} else {
				wb.Data = base64.StdEncoding.EncodeToString(blob.Data)
			}

			wi.Blobs = append(wi.Blobs, wb)
		}

		wf.Items = append(wf.Items, wi)
	}

	payload, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal jcat: %w", err)
	}

	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	if _, err = zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress jcat: %w", err)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("compress jcat: %w", err)
	}

	return buf.Bytes(), nil
}

// Load parses a container produced by Save or by any other Jcat writer.
func Load(data []byte) (*File, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	var wf wireFile
	if err = json.Unmarshal(payload, &wf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	file := &File{
		VersionMajor: wf.VersionMajor,
		VersionMinor: wf.VersionMinor,
	}

	for _, wi := range wf.Items {
		if wi == nil {
			continue
		}

		item := &Item{
			ID:       wi.ID,
			AliasIDs: wi.AliasIDs,
		}

		for _, wb := range wi.Blobs {
			if wb == nil {
				continue
			}

			blob := &Blob{
				Kind:        wb.Kind,
				Flags:       wb.Flags,
				Timestamp:   wb.Timestamp,
				AppstreamID: wb.AppstreamID,
			}

			if blob.IsUTF8() {
				blob.Data = []byte(wb.Data)
			} else {
				blob.Data, err = base64.StdEncoding.DecodeString(wb.Data)
				if err != nil {
					return nil, fmt.Errorf("%w: blob of item %q: %w", ErrFormat, wi.ID, err)
				}
			}

			item.Blobs = append(item.Blobs, blob)
		}

		file.Items = append(file.Items, item)
	}

	return file, nil
}
