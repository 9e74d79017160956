package engine

import (
	"context"

	"github.com/cloudrecon-labs/posturescan/internal/executor"
	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/scanners"
)

// buildPlan expands the selected scanners into executable units. Global
// scanners contribute exactly one unit under the global pseudo-region
// regardless of how many regions the request names; regional scanners
// contribute one unit per requested region.
func buildPlan(selected []scanners.Scanner, regions []string, sc *scanners.Context) []executor.Unit {
	var units []executor.Unit
	for _, s := range selected {
		if s.Global() {
			units = append(units, unit(s, scanners.GlobalRegion, sc))
			continue
		}
		for _, region := range regions {
			units = append(units, unit(s, region, sc))
		}
	}
	return units
}

func unit(s scanners.Scanner, region string, sc *scanners.Context) executor.Unit {
	return executor.Unit{
		Region:  region,
		Service: s.Service(),
		Run: func(ctx context.Context) ([]models.Finding, error) {
			return s.Scan(ctx, sc, region)
		},
	}
}
