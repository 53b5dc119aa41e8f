package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harrylevesque/scanrelay/internal/api"
	"github.com/harrylevesque/scanrelay/internal/certs"
	"github.com/harrylevesque/scanrelay/internal/config"
	"github.com/harrylevesque/scanrelay/internal/files"
	"github.com/harrylevesque/scanrelay/internal/metrics"
	"github.com/harrylevesque/scanrelay/internal/utils"
)

var (
	configPath string
	addr       string
	storePath  string
	certDir    string
	domain     string
	logLevel   string

	genHosts    []string
	genValidFor time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Receive scan results posted by scan stations",
	Long: `Serves POST /api/handle-scan for scan stations and stores every received
scan in a JSON file. GET /api/scans lists them, /metrics exposes counters.

TLS is served from --cert-dir (server.crt/server.key), obtained from
Let's Encrypt for --domain, or left off.`,
	SilenceUsage: true,
	RunE:         serve,
}

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Write a self-signed certificate into --cert-dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		if certDir == "" {
			return errors.New("--cert-dir is required")
		}
		if err := certs.NewCertManager(certDir).GenerateSelfSigned(genHosts, genValidFor); err != nil {
			return fmt.Errorf("generate certificate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s to %s\n", certs.CertFile, certs.KeyFile, certDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&certDir, "cert-dir", "", "Directory holding server.crt and server.key")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	rootCmd.Flags().StringVar(&storePath, "store", "", "Scan store file")
	rootCmd.Flags().StringVar(&domain, "domain", "", "Obtain a certificate for this domain via ACME")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error")

	gencertCmd.Flags().StringSliceVar(&genHosts, "host", []string{"localhost", "127.0.0.1"}, "Hosts and IPs the certificate is valid for")
	gencertCmd.Flags().DurationVar(&genValidFor, "valid-for", 365*24*time.Hour, "Certificate lifetime")
	rootCmd.AddCommand(gencertCmd)
}

// loadConfig applies the flags that were set on top of the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Changed("store") {
		cfg.Server.StorePath = storePath
	}
	if flags.Changed("cert-dir") {
		cfg.Server.CertDir = certDir
	}
	if flags.Changed("domain") {
		cfg.Server.Domain = domain
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Logging.Level, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := files.NewScanStore(cfg.Server.StorePath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handlers := api.NewHandlers(store, logger, metrics.New(reg))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handlers, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var challenge *http.Server
	switch {
	case cfg.Server.Domain != "":
		m := certs.Autocert(cfg.Server.Domain, cfg.Server.CacheDir)
		srv.TLSConfig = m.TLSConfig()
		challenge = &http.Server{Addr: ":80", Handler: m.HTTPHandler(nil), ReadHeaderTimeout: 10 * time.Second}
	case cfg.Server.CertDir != "":
		cm := certs.NewCertManager(cfg.Server.CertDir)
		if err := logCertificates(cm, logger); err != nil {
			return err
		}
		tlsCfg, err := cm.TLSConfig()
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	g.Go(func() error {
		logger.Info("receiver listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", srv.TLSConfig != nil),
			zap.String("store", cfg.Server.StorePath))
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if challenge != nil {
		g.Go(func() error {
			if err := challenge.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if challenge != nil {
			_ = challenge.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// logCertificates reports the expiry of every certificate in the cert
// directory, so a stale chain file shows up before clients start failing.
func logCertificates(cm *certs.CertManager, logger *zap.Logger) error {
	loaded, err := cm.LoadCertificates()
	if err != nil {
		return fmt.Errorf("read certificates: %w", err)
	}
	for _, cert := range loaded {
		fields := []zap.Field{
			zap.String("subject", cert.Subject.String()),
			zap.Time("not_after", cert.NotAfter),
		}
		if cm.IsExpired(cert) {
			logger.Warn("certificate expired", fields...)
			continue
		}
		logger.Info("certificate loaded", fields...)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
