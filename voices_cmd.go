package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the speech engine",
	Long:    paragraph(fmt.Sprintf("\nList the %s the configured speech engine offers, with the languages each one speaks.", keyword("voices"))),
	Example: paragraph("readaloud voices\nreadaloud voices --engine google"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		synth, err := speech.New(ctx, cfg.Speech)
		if err != nil {
			return fmt.Errorf("unable to create speech backend: %w", err)
		}
		if c, ok := synth.(interface{ Close() error }); ok {
			defer func() { _ = c.Close() }()
		}

		voices, err := synth.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to list %s voices: %w", synth.Name(), err)
		}
		if len(voices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), subtle("No voices."))
			return nil
		}

		for _, v := range voices {
			langs := make([]string, 0, len(v.Languages))
			for _, l := range v.Languages {
				langs = append(langs, l.String())
			}
			name := ""
			if v.Name != "" && v.Name != v.ID {
				name = " " + v.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s\n", keyword(v.ID), name, subtle(strings.Join(langs, ", ")))
		}
		return nil
	},
}
