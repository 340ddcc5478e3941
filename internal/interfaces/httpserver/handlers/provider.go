package handlers

import (
	"github.com/rs/zerolog"

	"file-hub/internal/config"
	domain "file-hub/internal/domain/file"
)

// Provider wires HTTP handlers.
type Provider struct {
	Files *FileHandler
}

func NewProvider(cfg *config.Config, service *domain.Service, log zerolog.Logger) *Provider {
	return &Provider{
		Files: NewFileHandler(cfg, service, log),
	}
}
