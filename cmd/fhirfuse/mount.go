// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/HealthSamurai/fhir-fuse/clock"
	"github.com/HealthSamurai/fhir-fuse/fs"
	"github.com/HealthSamurai/fhir-fuse/internal/logger"
	"github.com/HealthSamurai/fhir-fuse/remote"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// offlineBaseURL is the literal base_url value that skips capability
// discovery and every remote call.
const offlineBaseURL = "offline"

func runMount(cmd *cobra.Command, args []string) error {
	mountpoint, baseURL := args[0], args[1]

	logger.Init(logger.Config{
		Path:  viper.GetString("log-file"),
		JSON:  viper.GetBool("log-json"),
		Debug: viper.GetBool("debug"),
	})

	if addr := viper.GetString("metrics-addr"); addr != "" {
		go serveMetrics(addr)
	}

	offline := baseURL == offlineBaseURL

	var remoteClient remote.Client
	if !offline {
		remoteClient = remote.NewHTTPClient(baseURL, http.DefaultClient)
	}

	fileSystem, err := fs.New(fs.Config{
		Clock:   clock.RealClock{},
		Remote:  remoteClient,
		Offline: offline,
	})
	if err != nil {
		return fmt.Errorf("building filesystem: %w", err)
	}

	server := fuseutil.NewFileSystemServer(fileSystem)

	opts := defaultMountOptions()
	for k, v := range flags.mountOptions {
		opts[k] = v
	}

	fsName := viper.GetString("fsname")
	cfg := &fuse.MountConfig{
		FSName:                  fsName,
		Subtype:                 "fhirfuse",
		VolumeName:              fsName,
		Options:                 opts,
		EnableParallelDirOps:    true,
		DisableWritebackCaching: true,
		ErrorLogger:             log.New(os.Stderr, "fuse: ", 0),
	}
	if viper.GetBool("debug") {
		cfg.DebugLogger = log.New(os.Stderr, "fuse debug: ", 0)
	}

	mfs, err := fuse.Mount(mountpoint, server, cfg)
	if err != nil {
		return fmt.Errorf("mounting at %s: %w", mountpoint, err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			if unmountErr := fuse.Unmount(mountpoint); unmountErr != nil {
				logger.Warn("unmount on signal failed", "mountpoint", mountpoint, "err", unmountErr)
			}
		case <-ctx.Done():
		}
	}()

	logger.Info("mounted", "mountpoint", mountpoint, "base_url", baseURL, "offline", offline, "session", logger.SessionID)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("serving mount at %s: %w", mountpoint, err)
	}

	return nil
}

// defaultMountOptions returns the baked-in options applied before any
// "-o" overrides are layered on: read-write, direct and synchronous I/O,
// allow_other, and the macOS markers that suppress resource-fork sidecars
// and extended-attribute storms.
func defaultMountOptions() map[string]string {
	return map[string]string{
		"rw":            "",
		"direct_io":     "",
		"sync":          "",
		"allow_other":   "",
		"novncache":     "",
		"noappledouble": "",
	}
}

// serveMetrics exposes Prometheus counters/gauges on addr until the
// process exits; a bind failure is logged, not fatal, since metrics are an
// optional ambient concern.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "addr", addr, "err", err)
	}
}
