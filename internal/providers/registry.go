package providers

import (
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/providers/googledrive"
	"github.com/trawlhq/trawl/internal/providers/local"
	"github.com/trawlhq/trawl/internal/providers/onedrive"
	"github.com/trawlhq/trawl/internal/providers/s3"
)

// All returns one factory per supported provider type, in display order.
func All() []driven.ProviderFactory {
	return []driven.ProviderFactory{
		local.NewFactory(),
		s3.NewFactory(),
		onedrive.NewFactory(),
		googledrive.NewFactory(),
	}
}
