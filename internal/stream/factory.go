package stream

import (
	"log/slog"

	"kvm-dashboard/internal/config"
)

// NewExporterFromConfig returns nil when export is disabled.
func NewExporterFromConfig(cfg config.Config, logger *slog.Logger, opts ...ClientOption) (*Exporter, error) {
	if !cfg.Export.Enabled() {
		return nil, nil
	}
	tlsCfg, err := cfg.ClientTLS()
	if err != nil {
		return nil, err
	}
	client := NewGRPCClient(cfg.Export.GRPCAddr, tlsCfg, cfg.Export.Token, cfg.Export.Method, logger, opts...)
	return NewExporter(client, cfg.Export.NodeID, cfg.Export.BufferSize, logger), nil
}
