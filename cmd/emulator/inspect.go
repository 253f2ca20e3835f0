package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/raywall/spec-emulator/pkg/config"
	"github.com/raywall/spec-emulator/pkg/dispatch"
	"github.com/raywall/spec-emulator/pkg/server"
	"github.com/spf13/cobra"
)

func newValidateCommand(f *flags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Valida a configuração (estrutura, overrides e expressões) sem subir o servidor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("erro de carregamento/estrutura: %w", err)
			}
			report, err := config.Analyze(cfg)
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("a configuração contém %d erro(s) lógico(s)", len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "formato da saída: text ou json")
	return cmd
}

func printReport(w io.Writer, report *config.ValidationReport, output string) error {
	if output == "json" {
		return json.NewEncoder(w).Encode(report)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "aviso: %s\n", warn)
	}
	if !report.Valid {
		fmt.Fprintln(w, "A configuração contém erros lógicos:")
		for _, e := range report.Errors {
			fmt.Fprintf(w, " - %s\n", e)
		}
		return nil
	}
	fmt.Fprintln(w, "Configuração válida")
	return nil
}

func newRoutesCommand(f *flags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Lista a tabela de rotas e a estratégia que atende cada uma",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), f)
			if err != nil {
				return err
			}
			srv, err := server.New(cmd.Context(), cfg, server.Options{})
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), srv.Engine().Routing().Routes(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "formato da saída: table ou json")
	return cmd
}

func printRoutes(w io.Writer, routes []dispatch.RouteInfo, output string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tTEMPLATE\tSTRATEGY\tAUTH\tORIGINS")
	for _, r := range routes {
		auth := "-"
		if r.RequireAuth {
			auth = "bearer"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Method, r.Template, r.Strategy, auth, strings.Join(r.Origins, ","))
	}
	return tw.Flush()
}
