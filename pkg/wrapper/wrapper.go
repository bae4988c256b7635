package wrapper

import (
	"context"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// Wrapper transforms a declared set of non-id fields on the way into
// storage (Wrap) and back out (Unwrap). wctx is whatever the wrapper's
// optional PreWrap/PreUnwrap hook returned; wrappers with no such hook
// always see a nil wctx.
type Wrapper interface {
	WrappedFields() []string
	Wrap(ctx context.Context, wctx any, field string, value any) (any, error)
	Unwrap(ctx context.Context, wctx any, field string, wrapped any) (any, error)
}

// PreWrapper is implemented by wrappers that need per-write context (e.g.
// the record id, to look up an encryption key) before any field is
// wrapped. partial is the record or delta being written, augmented with
// "id" when the write's filter attribute is id.
type PreWrapper interface {
	PreWrap(ctx context.Context, partial collstore.Record) (any, error)
}

// PreUnwrapper is the read-side counterpart of PreWrapper.
type PreUnwrapper interface {
	PreUnwrap(ctx context.Context, partial collstore.Record) (any, error)
}

// PreRemover is implemented by wrappers that must observe every id being
// removed (the per-record-key encryption wrappers, to delete the key).
// Its presence anywhere in a stack forces Remove into a read-ids-then-
// delete-one-by-one loop.
type PreRemover interface {
	PreRemove(ctx context.Context, id any) error
}

// Stack composes wrappers, outermost (applied first on Wrap, last on
// Unwrap) to innermost, over coll. A typical "compress then encrypt"
// stack is Stack(coll, Compress(...), mustEncrypt).
func Stack(coll collstore.Collection, wrappers ...Wrapper) collstore.Collection {
	return &stacked{coll: coll, wrappers: wrappers}
}

type stacked struct {
	coll     collstore.Collection
	wrappers []Wrapper
}

func (s *stacked) Name() string             { return s.coll.Name() }
func (s *stacked) Indices() keyschema.Schema { return s.coll.Indices() }

func (s *stacked) wrapperFor(field string) Wrapper {
	for _, w := range s.wrappers {
		for _, f := range w.WrappedFields() {
			if f == field {
				return w
			}
		}
	}
	return nil
}

func (s *stacked) isWrapped(attr string) bool {
	return attr != "" && s.wrapperFor(attr) != nil
}

// wrapFields runs every wrapper touching a field present in out, mutating
// out in place. prewrapCtx is the record passed to each wrapper's
// PreWrap hook; it may differ from out (Update's filter-supplied id is
// not necessarily a field of the delta being wrapped).
func (s *stacked) wrapFields(ctx context.Context, out, prewrapCtx collstore.Record) error {
	for _, w := range s.wrappers {
		touched := false
		for _, f := range w.WrappedFields() {
			if _, ok := out[f]; ok {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		var wctx any
		if pw, ok := w.(PreWrapper); ok {
			v, err := pw.PreWrap(ctx, prewrapCtx)
			if err != nil {
				return err
			}
			wctx = v
		}
		for _, f := range w.WrappedFields() {
			v, ok := out[f]
			if !ok {
				continue
			}
			wrapped, err := w.Wrap(ctx, wctx, f, v)
			if err != nil {
				return err
			}
			out[f] = wrapped
		}
	}
	return nil
}

// unwrapRecord reverses wrapFields, applying wrappers innermost-first.
func (s *stacked) unwrapRecord(ctx context.Context, rec collstore.Record) error {
	for i := len(s.wrappers) - 1; i >= 0; i-- {
		w := s.wrappers[i]
		touched := false
		for _, f := range w.WrappedFields() {
			if _, ok := rec[f]; ok {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		var wctx any
		if pu, ok := w.(PreUnwrapper); ok {
			v, err := pu.PreUnwrap(ctx, rec)
			if err != nil {
				return err
			}
			wctx = v
		}
		for _, f := range w.WrappedFields() {
			v, ok := rec[f]
			if !ok {
				continue
			}
			orig, err := w.Unwrap(ctx, wctx, f, v)
			if err != nil {
				return err
			}
			rec[f] = orig
		}
	}
	return nil
}

func (s *stacked) Add(ctx context.Context, record collstore.Record) error {
	out := record.Clone()
	if err := s.wrapFields(ctx, out, out); err != nil {
		return err
	}
	return s.coll.Add(ctx, out)
}

func (s *stacked) Get(ctx context.Context, attr string, value any, returnFields ...string) (collstore.Record, bool, error) {
	if s.isWrapped(attr) {
		return nil, false, &collstore.WrapperRefusedQueryError{Op: "get", Field: attr}
	}
	rec, ok, err := s.coll.Get(ctx, attr, value, returnFields...)
	if err != nil || !ok {
		return rec, ok, err
	}
	if err := s.unwrapRecord(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *stacked) GetAll(ctx context.Context, attr string, value any, returnFields ...string) (collstore.RecordIter, error) {
	if s.isWrapped(attr) {
		return nil, &collstore.WrapperRefusedQueryError{Op: "getAll", Field: attr}
	}
	iter, err := s.coll.GetAll(ctx, attr, value, returnFields...)
	if err != nil {
		return nil, err
	}
	return &wrappingIter{inner: iter, s: s}, nil
}

func (s *stacked) Update(ctx context.Context, attr string, value any, delta collstore.Record, opts ...collstore.UpdateOption) error {
	if s.isWrapped(attr) {
		return &collstore.WrapperRefusedQueryError{Op: "update", Field: attr}
	}
	out := delta.Clone()
	prewrapCtx := out.Clone()
	if attr == collstore.IDField {
		prewrapCtx[collstore.IDField] = value
	}
	if err := s.wrapFields(ctx, out, prewrapCtx); err != nil {
		return err
	}
	return s.coll.Update(ctx, attr, value, out, opts...)
}

func (s *stacked) Remove(ctx context.Context, attr string, value any) (int, error) {
	if s.isWrapped(attr) {
		return 0, &collstore.WrapperRefusedQueryError{Op: "remove", Field: attr}
	}

	var removers []PreRemover
	for _, w := range s.wrappers {
		if pr, ok := w.(PreRemover); ok {
			removers = append(removers, pr)
		}
	}
	if len(removers) == 0 {
		return s.coll.Remove(ctx, attr, value)
	}

	iter, err := s.coll.GetAll(ctx, attr, value, collstore.IDField)
	if err != nil {
		return 0, err
	}
	recs, err := collstore.CollectAll(ctx, iter)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range recs {
		id := rec[collstore.IDField]
		for _, pr := range removers {
			if err := pr.PreRemove(ctx, id); err != nil {
				return count, err
			}
		}
		n, err := s.coll.Remove(ctx, collstore.IDField, id)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

type wrappingIter struct {
	inner collstore.RecordIter
	s     *stacked
}

func (w *wrappingIter) Next(ctx context.Context) (collstore.Record, bool, error) {
	rec, ok, err := w.inner.Next(ctx)
	if err != nil || !ok {
		return rec, ok, err
	}
	if err := w.s.unwrapRecord(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (w *wrappingIter) Close() error { return w.inner.Close() }
