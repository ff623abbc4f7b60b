package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/devserver"
	"github.com/neilberkman/ragchat/internal/core/logging"
	"github.com/neilberkman/ragchat/pkg/transcript"
)

var (
	devAddr       string
	devToken      string
	devModels     string
	devChunkDelay time.Duration
	devSeed       []string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stub of the assistant backend",
	Long: `Run a local backend that echoes every message back in small chunks,
lists a fixed set of models and stores shared chats in memory. Point
[api] base_url at http://<addr>/api to use it.

Examples:
  ragchat devserver
  ragchat devserver --addr :9000 --chunk-delay 50ms
  ragchat devserver --seed testdata/shared.json`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().StringVar(&devAddr, "addr", "localhost:8000", "Listen address")
	devserverCmd.Flags().StringVar(&devToken, "token", "", "Require this API token")
	devserverCmd.Flags().StringVar(&devModels, "models", "llama3,mistral", "Comma-separated model list")
	devserverCmd.Flags().DurationVar(&devChunkDelay, "chunk-delay", 30*time.Millisecond, "Delay between streamed chunks")
	devserverCmd.Flags().StringArrayVar(&devSeed, "seed", nil, "Transcript file to serve as a shared chat (repeatable)")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logging.Options{Verbose: verbose, Console: true})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var modelList []string
	for _, m := range strings.Split(devModels, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modelList = append(modelList, m)
		}
	}

	srv := devserver.New(devserver.Options{
		Models:     modelList,
		Token:      devToken,
		ChunkDelay: devChunkDelay,
		Logger:     logger,
	})
	for _, path := range devSeed {
		tr, err := transcript.ParseFile(path)
		if err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		srv.Share(tr)
		fmt.Printf("Serving shared chat %s\n", tr.ChatID)
	}

	httpSrv := &http.Server{
		Addr:              devAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devserver listening", zap.String("addr", devAddr))
		errCh <- httpSrv.ListenAndServe()
	}()
	fmt.Printf("Stub backend on http://%s/api (Ctrl+C to stop)\n", devAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
