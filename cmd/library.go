package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func exportCMD() *cobra.Command {
	var file string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the library to an encrypted file (chromem store only)",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := mustApp(ctx)
			defer a.Close()

			v, err := a.Vectors()
			if err != nil {
				log.Fatal().Err(err).Msg("Export not available")
			}
			if err := v.Export(ctx, file); err != nil {
				log.Fatal().Err(err).Msg("Error exporting collection")
			}
			log.Info().Str("library", a.Config.Library.Name).Str("file", file).Msg("Exported")
		},
	}
	export.Flags().StringVar(&file, "file", "", "target file (default <vector_store.path>/<library>.chromem)")
	return export
}

func importCMD() *cobra.Command {
	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Load the library from a file written by export",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := mustApp(ctx)
			defer a.Close()

			v, err := a.Vectors()
			if err != nil {
				log.Fatal().Err(err).Msg("Import not available")
			}
			if err := v.Import(ctx, file); err != nil {
				log.Fatal().Err(err).Msg("Error importing collection")
			}
			n, _ := v.Count(ctx)
			log.Info().Str("library", a.Config.Library.Name).Int("chunks", n).Msg("Imported")
		},
	}
	imp.Flags().StringVar(&file, "file", "", "file written by export")
	_ = imp.MarkFlagRequired("file")
	return imp
}
