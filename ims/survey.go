package ims

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/imslink/hdf5"
	"github.com/robert-malhotra/imslink/internal/logging"
)

// TileReport is what a survey learned about one tile.
type TileReport struct {
	Tile   Tile
	Levels int
	Extent Extent

	// Err is nil for a tile that can be linked. Otherwise it wraps
	// ErrMissingTile or ErrMalformedTile.
	Err error
}

// SurveyReport summarizes a survey of every tile of a grid.
type SurveyReport struct {
	Tiles []TileReport

	// Extent is the union over the tiles without errors.
	Extent Extent
}

// Problems returns the reports of tiles that cannot be linked.
func (r *SurveyReport) Problems() []TileReport {
	var bad []TileReport
	for _, t := range r.Tiles {
		if t.Err != nil {
			bad = append(bad, t)
		}
	}
	return bad
}

// OK reports whether every tile can be linked.
func (r *SurveyReport) OK() bool {
	return len(r.Problems()) == 0
}

// Survey opens every tile of cfg read-only, up to cfg.Workers at a time,
// and checks that it could be linked. Unlike Link it does not stop at the
// first bad tile and writes nothing. The returned error is only non-nil for
// an invalid configuration or a cancelled context.
func Survey(ctx context.Context, cfg Config) (*SurveyReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.checkDir(); err != nil {
		return nil, err
	}

	tiles := cfg.Grid.Tiles()
	reports := make([]TileReport, len(tiles))

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range tiles {
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = surveyTile(filepath.Join(cfg.Dir, t.FileName()), t)
			if err := reports[i].Err; err != nil {
				logging.Debugf("Survey of %s: %v\n", t, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &SurveyReport{Tiles: reports, Extent: EmptyExtent()}
	for _, r := range reports {
		if r.Err == nil {
			res.Extent = res.Extent.Union(r.Extent)
		}
	}
	return res, nil
}

func surveyTile(path string, t Tile) TileReport {
	rep := TileReport{Tile: t}
	f, err := hdf5.Open(path)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %s: %w", ErrMissingTile, t.FileName(), err)
		return rep
	}
	defer f.Close()

	for _, name := range metadataGroups {
		if _, err := f.OpenGroup(InfoRoot + "/" + name); err != nil {
			rep.Err = fmt.Errorf("%w: %s: %s/%s: %w", ErrMalformedTile, t.FileName(), InfoRoot, name, err)
			return rep
		}
	}
	image, err := f.OpenGroup(InfoRoot + "/" + groupImage)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %s: %w", ErrMalformedTile, t.FileName(), err)
		return rep
	}
	if rep.Extent, err = readExtent(image); err != nil {
		rep.Err = fmt.Errorf("%s: %w", t.FileName(), err)
		return rep
	}
	levels, err := resolutionLevels(f)
	if err != nil {
		rep.Err = fmt.Errorf("%s: %w", t.FileName(), err)
		return rep
	}
	rep.Levels = len(levels)
	return rep
}
