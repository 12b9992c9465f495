package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers to build synthetic .safetensors files
// ---------------------------------------------------------------------------

type rawEntry struct {
	dtype string
	shape []int64
	data  []byte
}

// buildSafetensors lays out entries in sorted name order behind a JSON
// header with an 8-byte little-endian length prefix.
func buildSafetensors(t *testing.T, entries map[string]rawEntry, metadata map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	slices.Sort(names)

	header := make(map[string]any, len(entries)+1)
	if metadata != nil {
		header["__metadata__"] = metadata
	}

	var data []byte

	for _, name := range names {
		e := entries[name]
		start := len(data)
		data = append(data, e.data...)
		header[name] = storeHeaderEntry{DType: e.dtype, Shape: e.shape, Offsets: [2]int{start, len(data)}}
	}

	return frame(t, header, data)
}

func frame(t *testing.T, header any, data []byte) []byte {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	buf := make([]byte, 8, 8+len(headerJSON)+len(data))
	binary.LittleEndian.PutUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)

	return append(buf, data...)
}

func f32Bytes(t *testing.T, vals ...float32) []byte {
	t.Helper()

	tensor, err := NewTensor("tmp", []int64{int64(len(vals))}, vals)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	return tensor.Raw
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_TensorByNameAndDefault(t *testing.T) {
	blob := buildSafetensors(t, map[string]rawEntry{
		"beta":  {dtype: "F32", shape: []int64{1, 3}, data: f32Bytes(t, 3, 4, 5)},
		"alpha": {dtype: "F32", shape: []int64{2}, data: f32Bytes(t, 1, 2)},
	}, nil)

	store, err := OpenStoreFromBytes(blob)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}
	defer store.Close()

	if got := strings.Join(store.Names(), "|"); got != "alpha|beta" {
		t.Fatalf("Names() = %s; want alpha|beta", got)
	}

	if !store.Has("beta") || store.Has("gamma") {
		t.Fatal("Has() reports wrong membership")
	}

	beta, err := store.Tensor("beta")
	if err != nil {
		t.Fatalf("Tensor(beta): %v", err)
	}

	vals, err := beta.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	if !slices.Equal(beta.Shape, []int64{1, 3}) || !slices.Equal(vals, []float32{3, 4, 5}) {
		t.Fatalf("beta = %v %v; want [1 3] [3 4 5]", beta.Shape, vals)
	}

	first, err := store.Tensor("")
	if err != nil {
		t.Fatalf("Tensor(\"\"): %v", err)
	}

	if first.Name != "alpha" {
		t.Fatalf("default tensor = %q; want alpha", first.Name)
	}
}

func TestStore_MetadataAndIntegerDTypes(t *testing.T) {
	ints, err := NewTensor("idx", []int64{2, 2}, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	blob := buildSafetensors(t, map[string]rawEntry{
		"idx": {dtype: "I64", shape: ints.Shape, data: ints.Raw},
	}, map[string]string{"format": "pt", "block_shape": "2,2"})

	store, err := OpenStoreFromBytes(blob)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}
	defer store.Close()

	if md := store.Metadata(); md["block_shape"] != "2,2" || md["format"] != "pt" {
		t.Fatalf("Metadata() = %v", md)
	}

	if slices.Contains(store.Names(), "__metadata__") {
		t.Fatal("metadata must not be listed as a tensor")
	}

	got, err := store.Tensor("idx")
	if err != nil {
		t.Fatalf("Tensor: %v", err)
	}

	vals, err := Values[int64](got)
	if err != nil || !slices.Equal(vals, []int64{1, 2, 3, 4}) {
		t.Fatalf("Values = %v, %v", vals, err)
	}
}

func TestStore_MissingTensorListsAvailable(t *testing.T) {
	blob := buildSafetensors(t, map[string]rawEntry{
		"alpha": {dtype: "F32", shape: []int64{2}, data: f32Bytes(t, 1, 2)},
	}, nil)

	store, err := OpenStoreFromBytes(blob)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}
	defer store.Close()

	_, err = store.Tensor("missing")
	if err == nil || !strings.Contains(err.Error(), "available: alpha") {
		t.Fatalf("Tensor(missing) error = %v; want available names", err)
	}
}

func TestOpenStoreFromBytes_Corruption(t *testing.T) {
	valid := buildSafetensors(t, map[string]rawEntry{
		"x": {dtype: "F32", shape: []int64{3}, data: f32Bytes(t, 1, 2, 3)},
	}, nil)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short prefix", data: []byte{0, 0, 0, 0}},
		{name: "header past end", data: []byte{0xff, 0, 0, 0, 0, 0, 0, 0, '{', '}'}},
		{name: "invalid json", data: frameRaw([]byte("{invalid"))},
		{name: "no tensors", data: frameRaw([]byte("{}"))},
		{name: "truncated data", data: valid[:len(valid)-4]},
		{name: "unsupported dtype", data: buildSafetensors(t, map[string]rawEntry{
			"x": {dtype: "BOOL", shape: []int64{1}, data: []byte{1}},
		}, nil)},
		{name: "byte count mismatch", data: buildSafetensors(t, map[string]rawEntry{
			"x": {dtype: "F32", shape: []int64{2}, data: f32Bytes(t, 1, 2, 3)},
		}, nil)},
		{name: "negative dim", data: buildSafetensors(t, map[string]rawEntry{
			"x": {dtype: "U8", shape: []int64{-1}, data: nil},
		}, nil)},
		{name: "reversed offsets", data: frameRaw(append([]byte(`{"x":{"dtype":"F32","shape":[1],"data_offsets":[4,0]}}`), 0, 0, 0, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenStoreFromBytes(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenStoreFromBytes_RejectsOverflowingOffsets(t *testing.T) {
	tests := []struct {
		name    string
		offsets string
	}{
		{name: "near max int64", offsets: "[9223372036854775802,9223372036854775807]"},
		{name: "end past data", offsets: "[0,6]"},
		{name: "start past data", offsets: "[6,11]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := `{"x":{"dtype":"U8","shape":[5],"data_offsets":` + tt.offsets + `}}`
			data := frameRaw(append([]byte(header), 1, 2, 3, 4, 5))

			store, err := OpenStoreFromBytes(data)
			if err == nil {
				_, tErr := store.Tensor("x")
				t.Fatalf("OpenStoreFromBytes accepted offsets %s (Tensor err: %v)", tt.offsets, tErr)
			}

			if !strings.Contains(err.Error(), "data offsets") {
				t.Fatalf("error = %v; want data offsets error", err)
			}
		})
	}
}

// frameRaw prefixes a header that may itself be trailed by data bytes; the
// length covers only the JSON object.
func frameRaw(b []byte) []byte {
	n := strings.LastIndexByte(string(b), '}') + 1

	buf := make([]byte, 8, 8+len(b))
	binary.LittleEndian.PutUint64(buf, uint64(n))

	return append(buf, b...)
}

func TestLoadTensor_FileErrors(t *testing.T) {
	if _, _, err := LoadTensor(filepath.Join(t.TempDir(), "missing.safetensors"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "x.safetensors")

	blob := buildSafetensors(t, map[string]rawEntry{
		"x": {dtype: "F32", shape: []int64{1}, data: f32Bytes(t, 1)},
	}, nil)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := LoadTensor(path, "y"); err == nil {
		t.Fatal("expected error for missing tensor name")
	}
}
