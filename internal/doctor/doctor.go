// Package doctor provides environment preflight checks for spacebatch.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-spacebatch/internal/safetensors"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// minGoMinor is the oldest Go 1.x toolchain the module builds with.
const minGoMinor = 25

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// GoVersion returns the runtime version (e.g. "go1.25.1").
	GoVersion VersionFunc
	// Workers is the configured goroutine cap; MaxProcs is GOMAXPROCS.
	Workers  int
	MaxProcs int
	// TensorFiles are .safetensors inputs that must open cleanly.
	TensorFiles []string
	// TensorName, when set, must exist in every tensor file.
	TensorName string
	// SelfCheck runs a small kernel-vs-reference comparison. Nil skips it.
	SelfCheck func() error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Go runtime -------------------------------------------------------
	if cfg.GoVersion != nil {
		ver, err := cfg.GoVersion()
		if err == nil {
			err = checkGoVersion(ver)
		}

		if err != nil {
			res.fail(fmt.Sprintf("go runtime: %v", err))
			fmt.Fprintf(w, "%s go runtime %s: %v\n", FailMark, ver, err)
		} else {
			fmt.Fprintf(w, "%s go runtime: %s\n", PassMark, ver)
		}
	}

	// ---- worker pool ------------------------------------------------------
	switch {
	case cfg.Workers < 1:
		res.fail(fmt.Sprintf("workers: %d is not a valid goroutine cap", cfg.Workers))
		fmt.Fprintf(w, "%s workers: %d (must be >= 1)\n", FailMark, cfg.Workers)
	case cfg.MaxProcs > 0 && cfg.Workers > cfg.MaxProcs:
		fmt.Fprintf(w, "%s workers: %d (exceeds GOMAXPROCS=%d; extra goroutines only add scheduling)\n",
			PassMark, cfg.Workers, cfg.MaxProcs)
	default:
		fmt.Fprintf(w, "%s workers: %d (GOMAXPROCS=%d)\n", PassMark, cfg.Workers, cfg.MaxProcs)
	}

	// ---- kernel self-check ------------------------------------------------
	if cfg.SelfCheck != nil {
		if err := cfg.SelfCheck(); err != nil {
			res.fail(fmt.Sprintf("kernel self-check: %v", err))
			fmt.Fprintf(w, "%s kernel self-check: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s kernel self-check: ok\n", PassMark)
		}
	}

	// ---- tensor files -----------------------------------------------------
	for _, path := range cfg.TensorFiles {
		desc, err := describeTensorFile(path, cfg.TensorName)
		if err != nil {
			res.fail(fmt.Sprintf("tensor file %q: %v", path, err))
			fmt.Fprintf(w, "%s tensor file %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s tensor file %s: %s\n", PassMark, path, desc)
		}
	}

	return res
}

func describeTensorFile(path, name string) (string, error) {
	store, err := safetensors.OpenStore(path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	names := store.Names()

	label := "first"
	if name != "" {
		if !store.Has(name) {
			return "", fmt.Errorf("tensor %q not found (%d tensor(s) in file)", name, len(names))
		}

		label = "selected"
	}

	t, err := store.Tensor(name)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d tensor(s), %s %q %s %v", len(names), label, t.Name, t.DType, t.Shape), nil
}

// checkGoVersion returns an error if ver is older than go1.<minGoMinor>.
// Development builds ("devel ...") pass.
func checkGoVersion(ver string) error {
	if strings.HasPrefix(ver, "devel") {
		return nil
	}

	major, minor, err := parseMajorMinor(strings.TrimPrefix(ver, "go"))
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}

	if major != 1 {
		return fmt.Errorf("requires Go 1.x, got %d", major)
	}

	if minor < minGoMinor {
		return fmt.Errorf("requires Go >=1.%d, got 1.%d", minGoMinor, minor)
	}

	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}

	// release candidates look like "go1.26rc1"
	minorPart := parts[1]
	if i := strings.IndexFunc(minorPart, func(r rune) bool { return r < '0' || r > '9' }); i > 0 {
		minorPart = minorPart[:i]
	}

	minor, err = strconv.Atoi(minorPart)
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}
