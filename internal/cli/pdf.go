package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aldoetobex/rentify-backend/internal/bootstrap"
	"github.com/aldoetobex/rentify-backend/internal/contracts"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// operator acts with admin rights on behalf of the person running the tool.
var operator = contracts.Caller{ID: uuid.Nil, Role: models.RoleAdmin}

func contractService(ctx context.Context, e *env) (*contracts.Service, *contracts.Worker, error) {
	blob, err := bootstrap.Blob(ctx, e.cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, worker := bootstrap.Contracts(e.cfg, e.db, blob, e.log)
	return svc, worker, nil
}

func PDFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Render or re-queue contract PDFs",
	}
	cmd.AddCommand(pdfRenderCmd(), pdfRetryCmd())
	return cmd
}

func pdfRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <contract-id>",
		Short: "Render a contract PDF to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contract id: %w", err)
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = "contract-" + id.String() + ".pdf"
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, _, err := contractService(cmd.Context(), e)
			if err != nil {
				return err
			}
			data, err := svc.ExportPDF(cmd.Context(), operator, id)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output file (default contract-<id>.pdf)")
	return cmd
}

func pdfRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <contract-id>",
		Short: "Queue a fresh PDF for an active or completed contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contract id: %w", err)
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, _, err := contractService(cmd.Context(), e)
			if err != nil {
				return err
			}
			job, err := svc.RegeneratePDF(cmd.Context(), operator, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued job %s (%s)\n", job.ID, job.TargetStatus)
			return nil
		},
	}
}

func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the PDF worker without the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, worker, err := contractService(ctx, e)
			if err != nil {
				return err
			}
			if once {
				n, err := worker.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d job(s)\n", n)
				return nil
			}
			e.log.WithField("workers", e.cfg.PDFWorkers).Info("pdf worker started")
			return worker.Run(ctx)
		},
	}
	cmd.Flags().Bool("once", false, "process due jobs once and exit")
	return cmd
}
