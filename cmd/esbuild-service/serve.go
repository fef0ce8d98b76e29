package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
	"github.com/wagiedev/esbuild-service-go/devserver"
)

const shutdownTimeout = 5 * time.Second

var (
	serveAddr        string
	serveRoot        string
	serveContextPath string
	serveTSConfig    string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a TypeScript front end, transpiling modules on request",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&serveRoot, "root", "src/main/frontend", "Front end directory holding src/, lib/ and tsconfig.json")
	cmd.Flags().StringVar(&serveContextPath, "context-path", "", "URL prefix of the application")
	cmd.Flags().StringVar(&serveTSConfig, "tsconfig", "", "tsconfig.json passed to esbuild (default <root>/tsconfig.json)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	server := env.file.Server
	flags := cmd.Flags()

	if flags.Changed("addr") || server.Addr == "" {
		server.Addr = serveAddr
	}

	if flags.Changed("root") || server.Root == "" {
		server.Root = serveRoot
	}

	if flags.Changed("context-path") {
		server.ContextPath = serveContextPath
	}

	if flags.Changed("tsconfig") {
		server.TSConfig = serveTSConfig
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := esbuild.Start(ctx, append(env.options, esbuild.WithMetricsRegisterer(reg))...)
	if err != nil {
		return err
	}
	defer func() { _ = service.Stop() }()

	handler, err := devserver.NewHandler(service, devserver.Config{
		Root:        server.Root,
		ContextPath: server.ContextPath,
		TSConfig:    server.TSConfig,
		Logger:      env.log,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: server.Addr,
		Handler: devserver.NewServeMux(handler, devserver.MuxConfig{
			Gatherer:    reg,
			Root:        server.Root,
			ContextPath: server.ContextPath,
			ImportMapParams: map[string]string{
				devserver.LibraryPrefixPlaceholder: server.LibraryPrefix,
				devserver.AppRevisionPlaceholder:   server.Revision,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		env.log.Info("serving front end", "addr", server.Addr, "root", server.Root, "context_path", server.ContextPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
