package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"patreonix/config"
	"patreonix/integrations/exports"
	"patreonix/native/creator"
)

// runExport writes an offline snapshot of the registry. The daemon must not be
// running against the same data directory.
func runExport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("patreonixd export", flag.ContinueOnError)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	format := fs.String("format", "csv", "Output format: csv, jsonl or parquet")
	kind := fs.String("kind", "content", "Records to export: content or creators")
	outPath := fs.String("out", "", "Output file (defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	snap, err := node.Snapshot(context.Background())
	if err != nil {
		return err
	}

	out := stdout
	if path := strings.TrimSpace(*outPath); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	checksum, err := writeExport(out, strings.ToLower(*kind), strings.ToLower(*format), snap.Creators, snap.Contents)
	if err != nil {
		return err
	}
	if checksum != "" && *outPath != "" {
		fmt.Fprintf(stdout, "sha256 %s  %s\n", checksum, *outPath)
	}
	return nil
}

func writeExport(out io.Writer, kind, format string, creators []*creator.CreatorInfo, contents []*creator.ContentDetails) (string, error) {
	var (
		data     []byte
		checksum string
		err      error
	)
	switch kind {
	case "content":
		switch format {
		case "csv":
			data, checksum, err = exports.ContentCSV(contents)
		case "jsonl":
			data, checksum, err = exports.ContentJSONL(contents)
		case "parquet":
			return "", exports.ContentParquet(out, contents)
		default:
			return "", fmt.Errorf("unknown format %q", format)
		}
	case "creators":
		if format != "csv" {
			return "", fmt.Errorf("creators export supports csv only")
		}
		data, checksum, err = exports.CreatorsCSV(creators)
	default:
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return "", err
	}
	if _, err := out.Write(data); err != nil {
		return "", err
	}
	return checksum, nil
}
