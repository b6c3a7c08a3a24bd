package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexhamidi/typing-tracker/internal/finger"
	"github.com/alexhamidi/typing-tracker/internal/store"
)

// calibrationFile is the YAML layout of exported key positions.
type calibrationFile struct {
	Keys map[string]position `yaml:"keys"`
}

type position struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func newCalibrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Export or import calibrated key positions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Write key positions as YAML to file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCalibrationExport,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace key positions with those in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCalibrationImport,
	})
	return cmd
}

func runCalibrationExport(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return exportCalibration(context.Background(), st, out)
}

func runCalibrationImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := importCalibration(context.Background(), st, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d key positions\n", n)
	return nil
}

func exportCalibration(ctx context.Context, st *store.Store, w io.Writer) error {
	list, err := st.KeyPositions().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read key positions: %w", err)
	}
	file := calibrationFile{Keys: make(map[string]position, len(list))}
	for _, p := range list {
		file.Keys[p.Key] = position{X: p.X, Y: p.Y}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}

func importCalibration(ctx context.Context, st *store.Store, r io.Reader) (int, error) {
	var file calibrationFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to parse calibration: %w", err)
	}

	positions := make([]store.KeyPosition, 0, len(file.Keys))
	for key, p := range file.Keys {
		if p.X < 0 || p.Y < 0 {
			return 0, fmt.Errorf("key %q: negative position (%d, %d)", key, p.X, p.Y)
		}
		positions = append(positions, store.KeyPosition{Key: finger.NormalizeKey(key), X: p.X, Y: p.Y})
	}
	if err := st.KeyPositions().ReplaceAll(ctx, positions); err != nil {
		return 0, fmt.Errorf("failed to store key positions: %w", err)
	}
	return len(positions), nil
}
