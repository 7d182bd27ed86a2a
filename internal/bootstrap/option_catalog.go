package bootstrap

import "video-merger/internal/domain"

var containerCatalog = []domain.OutputOption{
	{
		ID:          string(domain.ContainerMP4),
		Name:        "MP4",
		Description: "Widest playback compatibility.",
	},
	{
		ID:          string(domain.ContainerMKV),
		Name:        "MKV",
		Description: "Flexible container, preferred for archiving.",
	},
}

var compressionCatalog = []domain.OutputOption{
	{
		ID:          string(domain.CompressionFast),
		Name:        "Fast",
		Description: "Quickest encode, larger quality loss.",
	},
	{
		ID:          string(domain.CompressionMedium),
		Name:        "Medium",
		Description: "Balanced encode speed and quality.",
	},
	{
		ID:          string(domain.CompressionSlow),
		Name:        "Slow",
		Description: "Best quality, longest encode time.",
	},
}

// ContainerOptions lists selectable output containers for the UI.
func (a *App) ContainerOptions() []domain.OutputOption {
	return append([]domain.OutputOption(nil), containerCatalog...)
}

// CompressionOptions lists selectable compression tiers for the UI.
func (a *App) CompressionOptions() []domain.OutputOption {
	return append([]domain.OutputOption(nil), compressionCatalog...)
}

// getOutputOptionByID finds one option in a catalog by its ID.
func getOutputOptionByID(catalog []domain.OutputOption, id string) (domain.OutputOption, bool) {
	for _, option := range catalog {
		if option.ID == id {
			return option, true
		}
	}
	return domain.OutputOption{}, false
}
