package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

// bucketKey addresses a member reference bucket. Methods and properties are
// keyed by bare name unless partitioning is on; constructors always by owner.
// Class and interface members never share a bucket.
type bucketKey struct {
	family symbols.Kind
	kind   symbols.Kind
	owner  string
	name   string
}

type bucket struct {
	refs []symbols.Reference
	seen map[symbols.Location]bool
}

func (b *bucket) add(ref symbols.Reference) bool {
	if b.seen[ref.Location] {
		return false
	}
	b.seen[ref.Location] = true
	b.refs = append(b.refs, ref)
	return true
}

func (e *Engine) memberKey(owner *symbols.Symbol, m *symbols.Member) bucketKey {
	k := bucketKey{family: owner.Kind, kind: m.Kind, name: m.Name}
	if m.Kind == symbols.KindConstructor {
		k.owner = owner.ID
		k.name = "constructor"
	} else if e.opts.PartitionMembersByOwner {
		k.owner = owner.ID
	}
	return k
}

// Track resolves every member of local classes and interfaces, and every local
// function, through the model's exact resolution. Member references are
// gathered into buckets and then applied to each member; a member whose
// resolution fails is skipped with a warning.
func (e *Engine) Track(ctx context.Context, model source.Model, cat *catalog.Catalog) error {
	defer e.inst.Phase(PhaseTrack)()

	owners := cat.OfKind(symbols.KindClass, symbols.KindInterface)
	buckets := map[bucketKey]*bucket{}
	for _, owner := range owners {
		if !owner.IsLocal {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, m := range owner.Members {
			sites, err := e.resolve(model, cat, m.ID)
			if err != nil {
				e.rec.warn(PhaseTrack, fileOf(owner), owner.Name+"."+m.Name,
					fmt.Sprintf("member resolution failed: %v", err))
				continue
			}
			key := e.memberKey(owner, m)
			b := buckets[key]
			if b == nil {
				b = &bucket{seen: map[symbols.Location]bool{}}
				buckets[key] = b
			}
			for _, site := range sites {
				if site.Syntax.Declaration || site.Syntax.InImport || m.IsDeclarationSite(site.Location) {
					continue
				}
				b.add(symbols.Reference{
					Location:    site.Location.Point(),
					Context:     ClassifyMember(site.Syntax),
					ContextLine: site.Line,
				})
			}
		}
	}

	for _, owner := range owners {
		if !owner.IsLocal {
			continue
		}
		for _, m := range owner.Members {
			var refs []symbols.Reference
			if b := buckets[e.memberKey(owner, m)]; b != nil {
				refs = append(refs, b.refs...)
			}
			sortReferences(refs)
			m.References = refs
			for _, r := range refs {
				e.inst.reference(PhaseTrack, r.Context)
			}
		}
	}

	for _, fn := range cat.OfKind(symbols.KindFunction) {
		if err := ctx.Err(); err != nil {
			return err
		}
		sites, err := e.resolve(model, cat, fn.ID)
		if err != nil {
			e.rec.warn(PhaseTrack, fileOf(fn), fn.Name, fmt.Sprintf("function resolution failed: %v", err))
			continue
		}
		var refs []symbols.Reference
		for _, site := range sites {
			if site.Syntax.Declaration || site.Syntax.InImport || fn.IsDeclarationSite(site.Location) {
				continue
			}
			refs = append(refs, symbols.Reference{
				Location:    site.Location.Point(),
				Context:     ClassifyToken(site.Syntax),
				ContextLine: site.Line,
			})
			e.inst.reference(PhaseTrack, refs[len(refs)-1].Context)
		}
		sortReferences(refs)
		fn.References = refs
	}
	return nil
}

var errNoDeclRef = errors.New("no declaration node recorded")

func (e *Engine) resolve(model source.Model, cat *catalog.Catalog, id string) ([]source.UsageSite, error) {
	ref, ok := cat.DeclRef(id)
	if !ok {
		return nil, errNoDeclRef
	}
	return model.ResolveExactReferences(ref)
}

func fileOf(s *symbols.Symbol) string {
	if s.Location == nil {
		return ""
	}
	return s.Location.File
}
