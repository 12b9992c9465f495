package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

const metadataKey = "__metadata__"

// Store is a decoded safetensors file. Tensor bytes stay in the file buffer
// until a tensor is requested.
type Store struct {
	raw      []byte
	entries  map[string]storeEntry
	names    []string
	metadata map[string]string
}

type storeEntry struct {
	DType DType
	Shape []int64
	Start int
	End   int
}

type storeHeaderEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

func OpenStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenStoreFromBytes(data)
}

func OpenStoreFromBytes(data []byte) (*Store, error) {
	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	store := &Store{
		raw:     data,
		entries: make(map[string]storeEntry, len(header)),
		names:   make([]string, 0, len(header)),
	}

	for name, raw := range header {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &store.metadata); err != nil {
				return nil, fmt.Errorf("safetensors: decode metadata: %w", err)
			}

			continue
		}

		entry, err := parseHeaderEntry(name, raw, headerEnd, len(data))
		if err != nil {
			return nil, err
		}

		store.entries[name] = entry
		store.names = append(store.names, name)
	}

	if len(store.entries) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	sort.Strings(store.names)

	return store, nil
}

// Names returns the tensor names in sorted order.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Metadata returns the string map stored under __metadata__, if any.
func (s *Store) Metadata() map[string]string {
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}

	return out
}

// Tensor returns the named tensor. An empty name selects the first tensor
// in sorted order.
func (s *Store) Tensor(name string) (*Tensor, error) {
	if name == "" {
		name = s.names[0]
	}

	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("safetensors: tensor %q not found (available: %s)", name, summarizeNames(s.names))
	}

	return &Tensor{
		Name:  name,
		DType: entry.DType,
		Shape: append([]int64(nil), entry.Shape...),
		Raw:   append([]byte(nil), s.raw[entry.Start:entry.End]...),
	}, nil
}

func (s *Store) Close() {
	s.raw = nil
	s.entries = nil
	s.names = nil
	s.metadata = nil
}

// LoadTensor opens path and returns the named tensor (or the first one when
// name is empty) together with the file metadata.
func LoadTensor(path, name string) (*Tensor, map[string]string, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	t, err := store.Tensor(name)
	if err != nil {
		return nil, nil, err
	}

	return t, store.Metadata(), nil
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	headerEnd := 8 + int(headerLen)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:headerEnd], &header); err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return headerEnd, header, nil
}

func parseHeaderEntry(name string, raw json.RawMessage, headerEnd, fileSize int) (storeEntry, error) {
	var e storeHeaderEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return storeEntry{}, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
	}

	dtype, err := ParseDType(e.DType)
	if err != nil {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if e.Offsets[0] < 0 || e.Offsets[1] < e.Offsets[0] || e.Offsets[1] > fileSize-headerEnd {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q has invalid data offsets %v for %d data bytes",
			name, e.Offsets, fileSize-headerEnd)
	}

	start := headerEnd + e.Offsets[0]
	end := headerEnd + e.Offsets[1]

	if start < headerEnd || end < start || end > fileSize {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q data [%d:%d] exceeds file size %d", name, start, end, fileSize)
	}

	n, err := shapeElementCount(e.Shape)
	if err != nil {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if want := n * int64(dtype.Size()); int64(end-start) != want {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q needs %d bytes but data has %d", name, want, end-start)
	}

	return storeEntry{
		DType: dtype,
		Shape: append([]int64(nil), e.Shape...),
		Start: start,
		End:   end,
	}, nil
}

func summarizeNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}

	const maxNames = 8
	if len(names) <= maxNames {
		return strings.Join(names, ", ")
	}

	return strings.Join(names[:maxNames], ", ") + ", ..."
}
