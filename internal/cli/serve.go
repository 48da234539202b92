package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v74"

	"github.com/mark3labs/paymentsheet-go"
	httpps "github.com/mark3labs/paymentsheet-go/http"
	pschi "github.com/mark3labs/paymentsheet-go/http/chi"
	psgin "github.com/mark3labs/paymentsheet-go/http/gin"
)

const (
	routerStd  = "std"
	routerChi  = "chi"
	routerGin  = "gin"
	shutdownIn = 10 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a merchant backend that creates intents for deferred confirmations",
		Long: `serve answers POST ` + httpps.IntentsPath + ` by creating a payment or setup
intent with the secret key and returning its client secret.`,
		Example: `  PAYMENTSHEET_SECRET_KEY=sk_test_... paymentsheet serve --router chi --listen :4242`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":4242", "address to listen on")
	flags.String("router", routerChi, "router implementation: std, chi or gin")
	flags.String("secret-key", "", "secret API key (PAYMENTSHEET_SECRET_KEY)")
	flags.String("stripe-api-url", "", "override the API host used with the secret key")
	flags.Bool("confirm-on-server", false, "confirm intents when creating them")
	flags.String("return-url", "", "return URL for intents confirmed on the server")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	v := a.v

	opts := []httpps.CreatorOption{httpps.WithCreatorLogger(a.logger)}
	if v.GetBool("confirm-on-server") {
		opts = append(opts, httpps.WithServerSideConfirmation(v.GetString("return-url")))
	}
	if url := v.GetString("stripe-api-url"); url != "" {
		opts = append(opts, httpps.WithBackends(&stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:           stripe.String(url),
				LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
			}),
		}))
	}
	creator, err := httpps.NewStripeIntentCreator(v.GetString("secret-key"), opts...)
	if err != nil {
		return fmt.Errorf("failed to create intent creator: %w", err)
	}

	handler := httpps.NewHandler(&reportingCreator{next: creator, reporter: a.reporter}, httpps.WithHandlerLogger(a.logger))
	router, err := buildRouter(v.GetString("router"), handler, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serve(ctx, ln, router, a.logger)
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("merchant backend listening", "addr", ln.Addr().String(), "path", httpps.IntentsPath)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownIn)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildRouter mounts handler on the chosen router implementation.
func buildRouter(kind string, handler *httpps.Handler, logger *slog.Logger) (http.Handler, error) {
	switch kind {
	case routerStd:
		mux := http.NewServeMux()
		mux.Handle(httpps.IntentsPath, handler)
		return mux, nil
	case routerChi:
		return pschi.NewRouter(handler, logger), nil
	case routerGin:
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		psgin.Register(r, handler)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown router %q: expected std, chi or gin", kind)
	}
}

// reportingCreator reports intent creation failures other than validation errors.
type reportingCreator struct {
	next     httpps.IntentCreator
	reporter *reporter
}

func (c *reportingCreator) CreateIntent(ctx context.Context, req *httpps.CreateIntentRequest, mode paymentsheet.Mode) (*httpps.CreateIntentResponse, error) {
	resp, err := c.next.CreateIntent(ctx, req, mode)
	if err != nil && !errors.Is(err, paymentsheet.ErrInvalidIntentConfiguration) {
		c.reporter.CaptureError(err, map[string]string{
			"command": "serve",
			"mode":    string(mode.Kind()),
		})
	}
	return resp, err
}
