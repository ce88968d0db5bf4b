package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/wabatch/internal/application"
	"github.com/JonMunkholm/wabatch/internal/core"
)

// contentFlags are shared by send and batch.
type contentFlags struct {
	message     string
	media       string
	useTemplate bool
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "message text; {{column}} placeholders are filled per row in batches")
	cmd.Flags().StringVar(&f.media, "media", "", "file to send as media; the message becomes its caption")
	cmd.Flags().BoolVar(&f.useTemplate, "default-template", false, "use the saved default message template as the message")
}

func (f *contentFlags) request(app *application.App) (core.SendRequest, error) {
	req := core.SendRequest{Message: f.message}
	if f.useTemplate {
		if f.message != "" {
			return req, errors.New("--message and --default-template are mutually exclusive")
		}
		req.Message = app.Service.MessageTemplate()
	}
	if f.media != "" {
		data, err := os.ReadFile(f.media)
		if err != nil {
			return req, fmt.Errorf("read media: %w", err)
		}
		req.Media = &core.Media{Filename: filepath.Base(f.media), Data: data}
	}
	return req, nil
}

func (c *cli) sendCmd() *cobra.Command {
	var (
		phone   string
		content contentFlags
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message or media to one phone number",
		Example: `  wabatch send --phone "81 777 444" --message "Your order is ready"
  wabatch send --phone +14155550100 --media invoice.pdf --message "Invoice attached"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := application.New(cmd.Context(), c.cfg, core.WithShutdown(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := content.request(app)
			if err != nil {
				return err
			}
			req.Phone = phone

			result, err := app.Service.Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "recipient phone number")
	_ = cmd.MarkFlagRequired("phone")
	content.register(cmd)
	return cmd
}

func (c *cli) batchCmd() *cobra.Command {
	var (
		contacts string
		stored   string
		content  contentFlags
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Send to every row of a contacts file",
		Long: `Send to every row of a .csv or .xlsx contacts file. The file must have a
NUMBERS column; other columns fill {{column}} placeholders in the message.

A local file given with --contacts is stored in the contacts directory
first, like an upload from the web UI. --stored sends to a file that is
already there. Sending stops at the first failed row.`,
		Example: `  wabatch batch --contacts clients.xlsx --message "Hello {{name}}"
  wabatch batch --stored 20240102_030405_000001_clients.xlsx --default-template`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (contacts == "") == (stored == "") {
				return errors.New("exactly one of --contacts or --stored is required")
			}

			app, err := application.New(cmd.Context(), c.cfg, core.WithShutdown(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := content.request(app)
			if err != nil {
				return err
			}
			req.ExistingContacts = stored
			if contacts != "" {
				data, err := os.ReadFile(contacts)
				if err != nil {
					return fmt.Errorf("read contacts: %w", err)
				}
				req.Contacts = &core.Upload{Filename: filepath.Base(contacts), Data: data}
			}

			result, err := app.Service.Send(cmd.Context(), req)
			if err != nil {
				var batchErr *core.BatchError
				if errors.As(err, &batchErr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "batch %s stopped at line %d after %d row(s) sent\n",
						batchErr.BatchID, batchErr.FailedLine, batchErr.RowsProcessed)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message)
			if result.Batch != nil {
				fmt.Fprintf(out, "batch id: %s\nrows processed: %d\n", result.Batch.BatchID, result.Batch.RowsProcessed)
				if result.Batch.LogoutWarning != "" {
					fmt.Fprintf(out, "logout warning: %s\n", result.Batch.LogoutWarning)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&contacts, "contacts", "c", "", "local contacts file (.csv, .xlsx, .xlsm, .xltx, .xltm)")
	cmd.Flags().StringVar(&stored, "stored", "", "name of a file already in the contacts directory")
	content.register(cmd)
	return cmd
}

func (c *cli) previewCmd() *cobra.Command {
	var rows, columns int
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the first rows and columns of a contacts file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read contacts: %w", err)
			}
			table, err := core.ReadTable(filepath.Base(path), data)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rows") {
				rows = c.cfg.Contacts.PreviewRowLimit
			}
			if !cmd.Flags().Changed("columns") {
				columns = c.cfg.Contacts.PreviewColumnLimit
			}
			return printPreview(cmd, core.BuildPreview(table, core.Limits(rows, columns)))
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "rows to show (default CONTACTS_PREVIEW_ROW_LIMIT)")
	cmd.Flags().IntVar(&columns, "columns", 0, "columns to show (default CONTACTS_PREVIEW_COLUMN_LIMIT)")
	return cmd
}

func printPreview(cmd *cobra.Command, p core.Preview) error {
	out := cmd.OutOrStdout()
	if len(p.Headers) == 0 {
		fmt.Fprintln(out, "(empty file)")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(p.Headers, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d rows, %d of %d columns", p.DisplayedRows, p.TotalRows, p.DisplayedColumns, p.TotalColumns)
	if p.Truncated {
		fmt.Fprint(out, " (truncated)")
	}
	fmt.Fprintln(out)
	return nil
}
