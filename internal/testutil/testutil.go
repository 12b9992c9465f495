// Package testutil provides shared fixtures and skip helpers for tests.
//
// Typical usage:
//
//	func TestTransformFile(t *testing.T) {
//	    in := testutil.WriteTensorFile(t, "input", []int64{1, 4, 4, 1}, testutil.Iota(16), nil)
//	    ...
//	    got := testutil.ReadFloat32(t, out, "")
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-spacebatch/internal/safetensors"
)

// LargeTestsEnv enables tests that move hundreds of megabytes.
const LargeTestsEnv = "SPACEBATCH_LARGE_TESTS"

// RequireLargeTests skips the test unless LargeTestsEnv is set and -short
// is off.
func RequireLargeTests(tb testing.TB) {
	tb.Helper()

	if testing.Short() {
		tb.Skip("large test skipped in -short mode")
	}

	if os.Getenv(LargeTestsEnv) == "" {
		tb.Skipf("large test disabled; set %s=1 to run", LargeTestsEnv)
	}
}

// Iota returns [0, 1, ..., n-1] as float32.
func Iota(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}

	return out
}

// WriteTensorFile writes one float32 tensor to a fresh .safetensors file in
// a per-test temp dir and returns its path.
func WriteTensorFile(tb testing.TB, name string, shape []int64, data []float32, metadata map[string]string) string {
	tb.Helper()

	tensor, err := safetensors.NewTensor(name, shape, data)
	if err != nil {
		tb.Fatalf("build tensor %q: %v", name, err)
	}

	return WriteTensors(tb, []safetensors.Tensor{tensor}, metadata)
}

// WriteTensors writes arbitrary tensors to a fresh .safetensors file.
func WriteTensors(tb testing.TB, tensors []safetensors.Tensor, metadata map[string]string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "fixture.safetensors")
	if err := safetensors.WriteFile(path, tensors, metadata); err != nil {
		tb.Fatalf("write fixture: %v", err)
	}

	return path
}

// ReadTensor loads the named tensor (first when empty) and its file metadata.
func ReadTensor(tb testing.TB, path, name string) (*safetensors.Tensor, map[string]string) {
	tb.Helper()

	tensor, md, err := safetensors.LoadTensor(path, name)
	if err != nil {
		tb.Fatalf("read %s: %v", path, err)
	}

	return tensor, md
}

// ReadFloat32 loads a floating-point tensor as float32 values and its shape.
func ReadFloat32(tb testing.TB, path, name string) ([]float32, []int64) {
	tb.Helper()

	tensor, _ := ReadTensor(tb, path, name)

	data, err := tensor.Float32()
	if err != nil {
		tb.Fatalf("decode %s: %v", path, err)
	}

	return data, tensor.Shape
}
