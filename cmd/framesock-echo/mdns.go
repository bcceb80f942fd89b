package main

import (
	"context"
	"log/slog"

	"github.com/enbility/zeroconf/v3"
	"github.com/pkg/errors"
)

// advertise registers the echo service over mDNS until ctx is done.
func advertise(ctx context.Context, cfg MDNSConfig, port int, txt []string) error {
	var opts []zeroconf.ServerOption
	if cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(cfg.TTL.Seconds())))
	}

	// nil interfaces means all of them
	server, err := zeroconf.Register(cfg.Instance, cfg.Service, cfg.Domain, port, txt, nil, opts...)
	if err != nil {
		return errors.Wrap(err, "register mdns service")
	}
	slog.Info("advertising service", "instance", cfg.Instance, "service", cfg.Service, "port", port)

	<-ctx.Done()
	server.Shutdown()
	return nil
}
