package extract

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ryanwaits/openpkg-sub004/core/speccache"
	"github.com/ryanwaits/openpkg-sub004/pkg/pkgjson"
)

// Extractor runs extractions with fixed options, reusing cached specs when
// the analysed sources are unchanged. It is safe for concurrent use when its
// cache is.
type Extractor struct {
	opts  Options
	cache *speccache.Cache
}

// NewExtractor returns an extractor. A nil cache disables caching.
func NewExtractor(cache *speccache.Cache, opts Options) *Extractor {
	return &Extractor{opts: opts.withDefaults(), cache: cache}
}

// Extract behaves like ExtractPackageSpec. The second result reports a
// cache hit; cached results carry the diagnostics recorded at generation.
func (x *Extractor) Extract(ctx context.Context, entryFile string) (*Result, bool, error) {
	p, err := buildProgram(ctx, entryFile, x.opts)
	if err != nil {
		return nil, false, err
	}
	defer p.Close()

	var key string
	if x.cache != nil {
		manifest, _ := p.FS().ReadFile(filepath.Join(p.BaseDir, pkgjson.FileName))
		key = x.cacheKey(p.ContentHash(), manifest)
		if s, ok := x.cache.Get(key); ok {
			x.opts.Logger.Debug("spec cache hit", "entry", entryFile, "key", key)
			res := &Result{Spec: s}
			if s.Generation != nil {
				res.Diagnostics = s.Generation.Issues
			}
			return res, true, nil
		}
	}

	res, err := extract(ctx, p, x.opts)
	if err != nil {
		return nil, false, err
	}
	if x.cache != nil {
		if err := x.cache.Put(key, res.Spec); err != nil {
			x.opts.Logger.Warn("failed to cache spec", "entry", entryFile, "err", err)
		}
	}
	return res, false, nil
}

// cacheKey covers every option that changes the produced spec.
func (x *Extractor) cacheKey(contentHash string, manifest []byte) string {
	resolve := "auto"
	if x.opts.ResolveExternalTypes != nil {
		resolve = strconv.FormatBool(*x.opts.ResolveExternalTypes)
	}
	return speccache.Key(
		contentHash,
		string(manifest),
		resolve,
		string(x.opts.SchemaExtraction),
		strconv.FormatBool(x.opts.Docs),
		x.opts.EntryPointSource,
		x.opts.GeneratorVersion,
	)
}
