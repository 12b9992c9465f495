package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-spacebatch/internal/runtime/ops"
	"github.com/example/go-spacebatch/internal/runtime/spacebatch"
	"github.com/example/go-spacebatch/internal/safetensors"
	"github.com/spf13/cobra"
)

// Metadata keys written next to every transformed tensor so the inverse
// command can recover the geometry without repeating flags.
const (
	metaDirection  = "spacebatch.direction"
	metaBlockShape = "spacebatch.block_shape"
	metaPaddings   = "spacebatch.paddings"
)

type transformSpec struct {
	use   string
	short string
	dir   spacebatch.Direction
}

var (
	spaceToBatchCmd = transformSpec{
		use:   "s2b",
		short: "Fold spatial blocks of a tensor file into its batch dimension",
		dir:   spacebatch.SpaceToBatch,
	}
	batchToSpaceCmd = transformSpec{
		use:   "b2s",
		short: "Scatter the batch dimension of a tensor file back into spatial blocks",
		dir:   spacebatch.BatchToSpace,
	}
)

func newTransformCmd(spec transformSpec) *cobra.Command {
	var (
		in  string
		out string
	)

	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(in) == "" {
				return fmt.Errorf("--in is required for %s", spec.use)
			}

			explicit := cmd.Flags().Changed("transform-block-shape") || cmd.Flags().Changed("transform-paddings")

			_, err = transformFile(transformRequest{
				Dir:             spec.dir,
				In:              in,
				Out:             out,
				TensorName:      cfg.Transform.TensorName,
				BlockShape:      cfg.Transform.Block(),
				Paddings:        cfg.Transform.Pads(),
				UseFileGeometry: spec.dir == spacebatch.BatchToSpace && !explicit,
			})

			return err
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input .safetensors path (required)")
	cmd.Flags().StringVar(&out, "out", "out.safetensors", "Output .safetensors path")

	return cmd
}

type transformRequest struct {
	Dir        spacebatch.Direction
	In         string
	Out        string
	TensorName string
	BlockShape []int64
	Paddings   []int64
	// UseFileGeometry lets block/padding metadata stored in the input
	// override BlockShape and Paddings.
	UseFileGeometry bool
}

type transformSummary struct {
	Tensor     string
	DType      safetensors.DType
	InShape    []int64
	OutShape   []int64
	BlockShape []int64
	Paddings   []int64
}

func transformFile(req transformRequest) (transformSummary, error) {
	start := time.Now()

	src, md, err := safetensors.LoadTensor(req.In, req.TensorName)
	if err != nil {
		return transformSummary{}, err
	}

	block, pads := req.BlockShape, req.Paddings

	if req.UseFileGeometry {
		fileBlock, filePads, ok, err := geometryFromMetadata(md)
		if err != nil {
			return transformSummary{}, fmt.Errorf("%s: %w", req.In, err)
		}

		if ok {
			block, pads = fileBlock, filePads
			slog.Debug("using geometry from input metadata", "block_shape", block, "paddings", pads)
		}
	}

	out, err := transformTensor(req.Dir, src, block, pads)
	if err != nil {
		return transformSummary{}, err
	}

	// Record the crops that invert this pass exactly.
	recorded := pads
	if req.Dir == spacebatch.SpaceToBatch {
		if recorded, err = spacebatch.InverseCrops(src.Shape, block, pads); err != nil {
			return transformSummary{}, err
		}
	}

	outMD := map[string]string{
		metaDirection:  req.Dir.String(),
		metaBlockShape: formatInts(block),
		metaPaddings:   formatInts(recorded),
	}

	if err := safetensors.WriteFile(req.Out, []safetensors.Tensor{out}, outMD); err != nil {
		return transformSummary{}, err
	}

	summary := transformSummary{
		Tensor:     src.Name,
		DType:      src.DType,
		InShape:    src.Shape,
		OutShape:   out.Shape,
		BlockShape: block,
		Paddings:   pads,
	}

	slog.Info("transform complete",
		"direction", req.Dir.String(),
		"tensor", summary.Tensor,
		"dtype", string(summary.DType),
		"in_shape", summary.InShape,
		"out_shape", summary.OutShape,
		"block_shape", block,
		"paddings", pads,
		"elements", out.ElemCount(),
		"elapsed", time.Since(start),
		"out", req.Out,
	)

	return summary, nil
}

// transformTensor moves the raw elements of t without converting them.
// Half-precision tensors travel as their uint16 bit patterns.
func transformTensor(dir spacebatch.Direction, t *safetensors.Tensor, block, pads []int64) (safetensors.Tensor, error) {
	switch t.DType {
	case safetensors.F32:
		return transformAs[float32](dir, t, block, pads)
	case safetensors.F64:
		return transformAs[float64](dir, t, block, pads)
	case safetensors.I32:
		return transformAs[int32](dir, t, block, pads)
	case safetensors.I64:
		return transformAs[int64](dir, t, block, pads)
	case safetensors.U8:
		return transformAs[uint8](dir, t, block, pads)
	case safetensors.U16, safetensors.F16, safetensors.BF16:
		return transformAs[uint16](dir, t, block, pads)
	default:
		return safetensors.Tensor{}, fmt.Errorf("tensor %q: dtype %s not supported", t.Name, t.DType)
	}
}

func transformAs[T ops.Element](dir spacebatch.Direction, t *safetensors.Tensor, block, pads []int64) (safetensors.Tensor, error) {
	vals, err := safetensors.Values[T](t)
	if err != nil {
		return safetensors.Tensor{}, err
	}

	var (
		out   []T
		shape []int64
	)

	switch dir {
	case spacebatch.SpaceToBatch:
		out, shape, err = ops.SpaceToBatchND(vals, t.Shape, block, pads)
	case spacebatch.BatchToSpace:
		out, shape, err = ops.BatchToSpaceND(vals, t.Shape, block, pads)
	default:
		err = fmt.Errorf("unsupported direction %s", dir)
	}

	if err != nil {
		return safetensors.Tensor{}, fmt.Errorf("tensor %q %v: %w", t.Name, t.Shape, err)
	}

	return safetensors.WithValues(t, shape, out)
}

// geometryFromMetadata returns the block shape and paddings recorded by a
// previous transform. ok is false when the file carries none.
func geometryFromMetadata(md map[string]string) (block, pads []int64, ok bool, err error) {
	rawBlock, hasBlock := md[metaBlockShape]
	rawPads, hasPads := md[metaPaddings]

	if !hasBlock && !hasPads {
		return nil, nil, false, nil
	}

	// Geometry recorded by batch-to-space describes the file it came from.
	if dir, set := md[metaDirection]; set && dir != spacebatch.SpaceToBatch.String() {
		return nil, nil, false, nil
	}

	if !hasBlock || !hasPads {
		return nil, nil, false, errors.New("metadata must carry both block shape and paddings")
	}

	if block, err = parseInts(rawBlock); err != nil {
		return nil, nil, false, fmt.Errorf("metadata %s: %w", metaBlockShape, err)
	}

	if pads, err = parseInts(rawPads); err != nil {
		return nil, nil, false, fmt.Errorf("metadata %s: %w", metaPaddings, err)
	}

	return block, pads, true, nil
}

func parseInts(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty list")
	}

	parts := strings.Split(s, ",")
	out := make([]int64, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", p, err)
		}

		out[i] = v
	}

	return out, nil
}

func formatInts(vals []int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatInt(v, 10)
	}

	return strings.Join(parts, ",")
}
