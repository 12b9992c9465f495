package safetensors

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestWriteFile_RoundTripWithMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.safetensors")

	want, err := NewTensor("input", []int64{4, 1, 2, 1}, []float32{1.5, -0.25, 3.25, 4, -1, 0.5, 2.5, 9})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	md := map[string]string{"direction": "space-to-batch", "block_shape": "2,2"}
	if err := WriteFile(path, []Tensor{want}, md); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, gotMD, err := LoadTensor(path, "")
	if err != nil {
		t.Fatalf("LoadTensor: %v", err)
	}

	if got.Name != want.Name || got.DType != F32 || !slices.Equal(got.Shape, want.Shape) {
		t.Fatalf("tensor = %s %s %v; want %s F32 %v", got.Name, got.DType, got.Shape, want.Name, want.Shape)
	}

	if !slices.Equal(got.Raw, want.Raw) {
		t.Fatal("raw bytes changed across write/read")
	}

	if gotMD["direction"] != "space-to-batch" || gotMD["block_shape"] != "2,2" {
		t.Fatalf("metadata = %v", gotMD)
	}
}

func TestEncodeTensors_SortsAndKeepsDTypes(t *testing.T) {
	b, err := NewTensor("b", []int64{2}, []uint8{3, 4})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	a, err := NewTensor("a", []int64{1, 2}, []int32{1, 2})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	blob, err := EncodeTensors([]Tensor{b, a}, nil)
	if err != nil {
		t.Fatalf("EncodeTensors: %v", err)
	}

	store, err := OpenStoreFromBytes(blob)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}
	defer store.Close()

	if names := store.Names(); !slices.Equal(names, []string{"a", "b"}) {
		t.Fatalf("Names() = %v, want [a b]", names)
	}

	gotB, err := store.Tensor("b")
	if err != nil {
		t.Fatalf("Tensor(b): %v", err)
	}

	if gotB.DType != U8 || !slices.Equal(gotB.Raw, []byte{3, 4}) {
		t.Fatalf("b = %s %v", gotB.DType, gotB.Raw)
	}
}

func TestEncodeTensors_ZeroElementTensor(t *testing.T) {
	empty, err := NewTensor("empty", []int64{0, 3}, []float32{})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	blob, err := EncodeTensors([]Tensor{empty}, nil)
	if err != nil {
		t.Fatalf("EncodeTensors: %v", err)
	}

	store, err := OpenStoreFromBytes(blob)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}

	got, err := store.Tensor("empty")
	if err != nil || got.ElemCount() != 0 || !slices.Equal(got.Shape, []int64{0, 3}) {
		t.Fatalf("Tensor(empty) = %+v, %v", got, err)
	}
}

func TestEncodeTensors_ValidationErrors(t *testing.T) {
	one := []byte{0, 0, 0x80, 0x3f}

	tests := []struct {
		name    string
		tensors []Tensor
	}{
		{name: "none"},
		{name: "empty name", tensors: []Tensor{{Name: " ", DType: F32, Shape: []int64{1}, Raw: one}}},
		{name: "reserved name", tensors: []Tensor{{Name: "__metadata__", DType: F32, Shape: []int64{1}, Raw: one}}},
		{name: "duplicate", tensors: []Tensor{
			{Name: "x", DType: F32, Shape: []int64{1}, Raw: one},
			{Name: "x", DType: F32, Shape: []int64{1}, Raw: one},
		}},
		{name: "byte mismatch", tensors: []Tensor{{Name: "x", DType: F32, Shape: []int64{1, 2}, Raw: one}}},
		{name: "bad dtype", tensors: []Tensor{{Name: "x", DType: "Q4", Shape: []int64{1}, Raw: one}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeTensors(tt.tensors, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
