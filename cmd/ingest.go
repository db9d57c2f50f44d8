package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"research-rag/internal/helper"
)

func ingestCMD() *cobra.Command {
	var force bool
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Parse, embed and store every file of the documents folder",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := mustApp(ctx)
			defer a.Close()

			report, err := a.Ingest.Process(ctx, force)
			if err != nil {
				log.Fatal().Err(err).Msg("Error processing documents")
			}
			helper.PrettyPrint(report)
			if failed := report.Failed(); len(failed) > 0 {
				log.Warn().Int("files", len(failed)).Msg("Some files were not ingested")
			}
		},
	}
	ingest.Flags().BoolVar(&force, "force", false, "drop the library and rebuild it")
	return ingest
}

func statusCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the library contents and unprocessed files",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := mustApp(ctx)
			defer a.Close()

			st, err := a.Ingest.Status(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Error reading library status")
			}
			helper.PrettyPrint(st)
		},
	}
}

func resetCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Empty the library, keeping the uploaded files",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := mustApp(ctx)
			defer a.Close()

			if err := a.Ingest.Reset(ctx); err != nil {
				log.Fatal().Err(err).Msg("Error resetting library")
			}
			fmt.Printf("library %s is empty\n", a.Config.Library.Name)
		},
	}
}
