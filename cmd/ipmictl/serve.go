package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tjst-t/go-ipmi/internal/config"
	"github.com/tjst-t/go-ipmi/internal/rawapi"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	var (
		useTLS   bool
		certFile string
		keyFile  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the raw HTTP API for the configured BMC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			conn, err := connect(cmd.Context(), cfg, transport.NewMetrics(reg))
			if err != nil {
				return err
			}
			defer conn.Close()

			httpServer := &http.Server{
				Addr: cfg.APIAddr,
				Handler: rawapi.NewServer(conn, rawapi.Options{
					User:     cfg.APIUser,
					Pass:     cfg.APIPass,
					Gatherer: reg,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			if useTLS || certFile != "" {
				cert, err := serverCertificate(certFile, keyFile, certificateHosts(cfg.APIAddr))
				if err != nil {
					return err
				}
				httpServer.TLSConfig = &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				}
			}

			errCh := make(chan error, 1)
			go func() {
				logger := log.WithFields(log.Fields{"addr": cfg.APIAddr, "tls": httpServer.TLSConfig != nil})
				logger.Info("starting raw API server")
				var err error
				if httpServer.TLSConfig != nil {
					err = httpServer.ListenAndServeTLS("", "")
				} else {
					err = httpServer.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				log.WithField("signal", sig.String()).Info("shutting down")
			case err := <-errCh:
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file")
	return cmd
}
