package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/callact/kbmigrate/provision"
)

var (
	provisionConfigPath   string
	provisionSkipDownload bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Download the inference model and launch the server",
	Long: `Provision the inference backend: download the quantized model, launch
the OpenAI-compatible server, and wait until GET /v1/models responds.

Examples:
  kbmigrate provision --config provision.yaml
  kbmigrate provision --skip-download
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := provision.LoadConfig(provisionConfigPath)
		if err != nil {
			fmt.Println("❌ Provision config error:", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := provision.Run(ctx, cfg, provisionSkipDownload); err != nil {
			switch {
			case errors.Is(err, provision.ErrModelMissing):
				fmt.Println("❌ Model file missing:", err)
			case errors.Is(err, provision.ErrReadyTimeout):
				fmt.Println("❌ Readiness timeout:", err)
			default:
				fmt.Println("❌ Provision failed:", err)
			}
			os.Exit(1)
		}
	},
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionConfigPath, "config", "c", "", "Path to provision YAML config")
	provisionCmd.Flags().BoolVar(&provisionSkipDownload, "skip-download", false, "Skip the model download step")
}
