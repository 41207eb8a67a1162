package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/domain/invoice"
	"invoicegen/internal/infrastructure/render"
)

func renderCmd() *cobra.Command {
	var output, number string
	var uncompressed bool

	cmd := &cobra.Command{
		Use:   "render <request.json|->",
		Short: "Render an invoice request to PDF without touching the database",
		Long: `Render an invoice request to PDF without touching the database.

The request is validated exactly like POST /api/v1/generate-invoice. The
invoice number is taken from the request unless --number is given; no
suffix allocation happens.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			draft, err := invoice.ParseRequest(body)
			if err != nil {
				return describeError(err)
			}
			if number == "" {
				number = draft.InvoiceNumber
			}

			var opts []render.Option
			if uncompressed {
				opts = append(opts, render.WithoutCompression())
			}
			pdf, err := render.New(opts...).Render(draft.Document(number))
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}

			if output == "" {
				output = number + ".pdf"
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(pdf)
				return err
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes, total %s)\n", output, len(pdf), draft.Total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default "<number>.pdf")`)
	cmd.Flags().StringVar(&number, "number", "", "invoice number to print instead of the requested one")
	cmd.Flags().BoolVar(&uncompressed, "uncompressed", false, "leave PDF page streams uncompressed")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return body, nil
}

// describeError flattens validation details into a readable message.
func describeError(err error) error {
	var b strings.Builder
	b.WriteString(err.Error())
	if appErr, ok := apperror.AsAppError(err); ok {
		fieldErrs, _ := appErr.Details["errors"].([]invoice.FieldError)
		for _, e := range fieldErrs {
			fmt.Fprintf(&b, "\n  %s: %s", e.Field, e.Message)
		}
	}
	return errors.New(b.String())
}
