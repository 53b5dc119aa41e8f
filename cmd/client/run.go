package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harrylevesque/scanrelay/internal/config"
	"github.com/harrylevesque/scanrelay/internal/console"
	"github.com/harrylevesque/scanrelay/internal/controller"
	"github.com/harrylevesque/scanrelay/internal/metrics"
	"github.com/harrylevesque/scanrelay/internal/permission"
	"github.com/harrylevesque/scanrelay/internal/scanner"
	"github.com/harrylevesque/scanrelay/internal/screen"
	"github.com/harrylevesque/scanrelay/internal/upload"
	"github.com/harrylevesque/scanrelay/internal/utils"
)

func newRunCmd() *cobra.Command {
	var (
		source        string
		dir           string
		device        string
		metricsAddr   string
		headless      bool
		askPermission bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scan station",
		Long: `Runs the scan station. Codes come from one of:
  keyboard  a keyboard-wedge scanner typing into the screen (default)
  dir       camera frames written into --dir, decoded as QR codes
  device    one code per line from a tty or FIFO at --device
  stdin     one code per line from standard input (--headless only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("scanner") {
				cfg.Scanner.Source = source
			}
			if flags.Changed("dir") {
				cfg.Scanner.Dir = dir
			}
			if flags.Changed("device") {
				cfg.Scanner.Device = device
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if flags.Changed("headless") {
				cfg.Screen.Headless = headless
			}
			if flags.Changed("ask-permission") {
				cfg.Screen.AskPermission = askPermission
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runStation(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&source, "scanner", "", "Scanner source: keyboard, dir, device, stdin")
	cmd.Flags().StringVar(&dir, "dir", "", "Frame directory for --scanner dir")
	cmd.Flags().StringVar(&device, "device", "", "Device path for --scanner device")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&headless, "headless", false, "Write feedback as plain lines instead of the screen")
	cmd.Flags().BoolVar(&askPermission, "ask-permission", false, "Ask for camera access before arming the scanner")
	return cmd
}

// runStation wires a controller to its scanner, view and uploader and runs
// it until the operator quits or the process is signalled.
func runStation(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	coll := metrics.New(reg)
	client := upload.NewClient(cfg.Endpoint,
		upload.WithTimeout(cfg.GetUploadTimeout()),
		upload.WithLogger(logger))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	stationCtx, stationDone := context.WithCancel(gctx)

	ctrlCfg := controller.Config{
		Uploader: client,
		Logger:   logger,
		Metrics:  coll,
	}

	var ctrl *controller.Controller
	if cfg.Screen.Headless {
		sc, err := buildScanner(cfg, in, nil, logger)
		if err != nil {
			stationDone()
			return err
		}
		loop := console.NewLoop()
		ctrlCfg.Scanner = sc
		ctrlCfg.View = console.NewView(out)
		ctrlCfg.Permissions = permission.NewStatic(cfg.Camera.Granted)
		ctrlCfg.Dispatch = loop.Dispatch
		ctrl = controller.New(ctrlCfg)

		g.Go(func() error {
			defer stationDone()
			return loop.Run(stationCtx, ctrl)
		})
	} else {
		scr := screen.New(screen.Options{
			Endpoint:       cfg.Endpoint,
			AskPermission:  cfg.Screen.AskPermission,
			Logger:         logger,
			ProgramOptions: []tea.ProgramOption{tea.WithAltScreen()},
		})
		sc, err := buildScanner(cfg, in, scr.Scanner(), logger)
		if err != nil {
			stationDone()
			return err
		}
		ctrlCfg.Scanner = sc
		ctrlCfg.View = scr.View()
		ctrlCfg.Permissions = scr.Prompter()
		ctrlCfg.Dispatch = scr.Dispatch
		ctrl = controller.New(ctrlCfg)
		scr.Attach(ctrl)

		g.Go(func() error {
			defer stationDone()
			return scr.Run(stationCtx)
		})
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-stationCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	// uploads still in flight finish on their own; their results are dropped
	ctrl.Wait()
	logger.Info("station stopped")
	return err
}

// buildScanner picks the scanner named by the config. keyboard is the
// screen's keyboard-wedge scanner, nil when running headless.
func buildScanner(cfg *config.Config, in io.Reader, keyboard scanner.Scanner, logger *zap.Logger) (scanner.Scanner, error) {
	switch cfg.Scanner.Source {
	case config.SourceKeyboard:
		if keyboard == nil {
			return nil, errors.New("the keyboard scanner needs the screen; use --scanner stdin when headless")
		}
		return keyboard, nil
	case config.SourceDir:
		return scanner.NewDirScanner(cfg.Scanner.Dir, logger), nil
	case config.SourceDevice:
		return scanner.NewLineScanner(cfg.Scanner.Device, scanner.DeviceOpener(cfg.Scanner.Device), logger), nil
	case config.SourceStdin:
		if keyboard != nil {
			return nil, errors.New("stdin belongs to the screen; add --headless to read codes from stdin")
		}
		return scanner.NewStreamScanner("stdin", in, logger), nil
	}
	return nil, fmt.Errorf("unknown scanner source %q", cfg.Scanner.Source)
}
