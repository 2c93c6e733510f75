package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/radiology-api/internal/importer"
)

type importOptions struct {
	entity  string
	file    string
	format  string
	charset string
	actor   string
}

func importCmd(configPath *string) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a local file through the same pipeline as the HTTP upload",
		Example: "  radis import --entity reports --file reports.json\n" +
			"  radis import --entity patients --file patients.csv --charset euc-kr",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runImport(ctx, cmd, *configPath, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.entity, "entity", "e", "", "destination entity (patients, reports, schedules, doctors, teaching-files, dicom)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "file to import")
	cmd.Flags().StringVar(&opts.format, "format", "", "json, json-stream, csv, xml or dcm (default: from the file extension)")
	cmd.Flags().StringVar(&opts.charset, "charset", "", "charset of the file (default: import.default_charset)")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "employee number recorded as the importer")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func resolveFormat(flag, file string) (importer.Format, error) {
	if flag != "" {
		return importer.ParseFormat(flag)
	}
	format, ok := importer.FormatForFile(file)
	if !ok {
		return "", fmt.Errorf("%w: cannot tell the format of %s, use --format", importer.ErrUnsupportedFormat, filepath.Base(file))
	}
	return format, nil
}

func runImport(ctx context.Context, cmd *cobra.Command, configPath string, opts importOptions) error {
	format, err := resolveFormat(opts.format, opts.file)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.file, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", opts.file, err)
	}

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close resources")
		}
	}()

	if _, err := a.importerFor(opts.entity); err != nil {
		return err
	}

	job := importer.Job{
		Entity:  opts.entity,
		Format:  format,
		Charset: opts.charset,
		Body:    f,
		Size:    info.Size(),
		Path:    opts.file,
		Meta: importer.RunMeta{
			Actor:  opts.actor,
			Source: filepath.Base(opts.file),
		},
	}
	summary, runErr := a.imports.Run(ctx, job)
	if summary != nil {
		a.imports.Announce(context.WithoutCancel(ctx), job, summary)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	}
	return runErr
}
