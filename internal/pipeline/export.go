package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tradeconv/internal"
)

// WriteCSV writes rows to a temporary file next to outputPath and renames it
// into place, so a failed write never leaves a partial CSV behind.
func WriteCSV(outputPath string, rows internal.Grid) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmp := f.Name()

	if err := encodeTo(f, rows); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func encodeTo(f *os.File, rows internal.Grid) error {
	if err := EncodeCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes rows with standard quoting and reports any flush error.
func EncodeCSV(w io.Writer, rows internal.Grid) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
