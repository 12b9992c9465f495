package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/example/go-spacebatch/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and input-file checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			result := doctor.Run(doctor.Config{
				GoVersion: func() (string, error) { return runtime.Version(), nil },
				Workers:   cfg.Runtime.Workers,
				MaxProcs:  runtime.GOMAXPROCS(0),
				SelfCheck: func() error {
					return selfCheck(cfg.Runtime.Workers)
				},
				TensorFiles: files,
				TensorName:  cfg.Transform.TensorName,
			}, cmd.OutOrStdout())

			if result.Failed() {
				return fmt.Errorf("doctor: %d check(s) failed", len(result.Failures()))
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "Tensor file to validate (repeatable)")

	return cmd
}

// selfCheck runs one small verify pass per check.
func selfCheck(workers int) error {
	checks := runVerify(verifyOptions{Cases: 2, Seed: 1, Workers: workers, MinChunk: 1})

	var errs []error

	for _, c := range checks {
		if c.Failures > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", c.Name, c.FirstFailure))
		}
	}

	return errors.Join(errs...)
}
