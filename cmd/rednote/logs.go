package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"

	"rednote/pkg/config"
	"rednote/pkg/ui"
)

var logsOutput string

// logsCmd groups log file helpers
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Package or open the log directory",
}

var logsPackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Zip every log file for a bug report",
	Args:  cobra.NoArgs,
	RunE:  runLogsPack,
}

var logsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the log directory in the file manager",
	Args:  cobra.NoArgs,
	RunE:  runLogsOpen,
}

func init() {
	logsPackCmd.Flags().StringVarP(&logsOutput, "out", "o", "rednote-logs.zip", "zip file to write")

	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsPackCmd)
	logsCmd.AddCommand(logsOpenCmd)
}

// logDir is the directory holding the configured log file.
func logDir(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return "", err
	}
	if cfg.Logging.File != "" {
		return filepath.Dir(cfg.Logging.File), nil
	}
	return config.LogDir(), nil
}

func runLogsPack(cmd *cobra.Command, args []string) error {
	dir, err := logDir(cmd)
	if err != nil {
		return err
	}

	n, err := packLogs(dir, logsOutput)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Packed %d log files into %s", n, logsOutput))
	return nil
}

// packLogs zips the regular files below dir into dest and returns how many
// were added.
func packLogs(dir, dest string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("no log directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	absDest, _ := filepath.Abs(dest)
	count := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absDest {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to pack logs: %w", err)
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return count, nil
}

func runLogsOpen(cmd *cobra.Command, args []string) error {
	dir, err := logDir(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var open *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		open = exec.Command("open", dir)
	case "windows":
		open = exec.Command("explorer", dir)
	default:
		open = exec.Command("xdg-open", dir)
	}
	if err := open.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", dir, err)
	}

	ui.PrintInfo("Log directory", dir)
	return nil
}
