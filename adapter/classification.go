package adapter

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/opal-airport/cache"
	"github.com/hugr-lab/opal-airport/opal"
)

// ClassificationSource provides display languages and taxonomies.
type ClassificationSource interface {
	GeneralConf(ctx context.Context) (*opal.GeneralConf, error)
	ListTaxonomies(ctx context.Context) ([]opal.Taxonomy, error)
}

// Classifications is the cached view of the configured display languages and
// the taxonomy -> vocabulary -> term hierarchy.
type Classifications struct {
	Languages  []string
	Taxonomies []opal.Taxonomy
}

// Vocabularies lists every (taxonomy, vocabulary) pair in listing order.
func (c *Classifications) Vocabularies() []VocabularyRef {
	var out []VocabularyRef
	for _, taxo := range c.Taxonomies {
		for _, voc := range taxo.Vocabularies {
			out = append(out, VocabularyRef{Taxonomy: taxo.Name, Vocabulary: voc.Name})
		}
	}
	return out
}

// classificationCache refreshes Classifications at most once at a time.
type classificationCache struct {
	remote     ClassificationSource
	languages  []string
	taxonomies bool
	logger     *slog.Logger

	mu   sync.Mutex
	cell *cache.Expiring[*Classifications]
}

// newClassificationCache creates the cache. When languages is non-empty the
// remote configuration is not read. Taxonomies are only fetched when
// withTaxonomies is set.
func newClassificationCache(remote ClassificationSource, languages []string, withTaxonomies bool,
	ttl time.Duration, now func() time.Time, logger *slog.Logger) *classificationCache {
	return &classificationCache{
		remote:     remote,
		languages:  slices.Clone(languages),
		taxonomies: withTaxonomies,
		logger:     logger,
		cell:       cache.New[*Classifications](ttl, now),
	}
}

func (c *classificationCache) Get(ctx context.Context) (*Classifications, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cell.Get(); ok {
		return v, nil
	}
	c.cell.Clear()

	out := &Classifications{Languages: c.languages}
	g, gctx := errgroup.WithContext(ctx)
	if len(c.languages) == 0 {
		g.Go(func() error {
			conf, err := c.remote.GeneralConf(gctx)
			if err != nil {
				return err
			}
			out.Languages = conf.Languages
			return nil
		})
	}
	if c.taxonomies {
		g.Go(func() error {
			taxonomies, err := c.remote.ListTaxonomies(gctx)
			if err != nil {
				return err
			}
			out.Taxonomies = taxonomies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("Failed to refresh classifications", "error", err)
		return nil, err
	}

	c.cell.Put(out)
	c.logger.Debug("Classifications refreshed",
		"languages", out.Languages,
		"taxonomies", len(out.Taxonomies),
	)
	return out, nil
}

func (c *classificationCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cell.Clear()
}
