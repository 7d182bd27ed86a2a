package config

import "video-merger/internal/domain"

// DefaultSettings returns baseline configuration for first launch. The
// output directory is left empty so merged files land beside their sources.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		OutputDir:        "",
		Container:        domain.ContainerMP4,
		CompressionLevel: domain.CompressionMedium,
	}
}
