// Package memory provides an in-memory gateway for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
)

type verKey struct {
	contentID int64
	versionNo int
}

type nameKey struct {
	contentID int64
	versionNo int
	language  string
}

type typeKey struct {
	id     int64
	status vc.TypeStatus
}

// state holds every table. It is shared between a Repository and its
// transaction-scoped views so writes inside a transaction land in the
// same maps.
type state struct {
	contents    map[int64]*vc.ContentInfo
	versions    map[verKey]*vc.VersionInfo
	fields      []vc.Field
	names       map[nameKey]string
	relations   map[int64]*vc.Relation
	languages   map[int64]vc.Language
	locations   map[int64]*vc.Location
	assignments []vc.NodeAssignment
	types       map[typeKey]*vc.ContentType

	nextContentID  int64
	nextFieldID    int64
	nextRelationID int64
	nextLocationID int64
	nextTypeID     int64
	nextFieldDefID int64
}

// Repository implements versionedcontent.Gateway and schema.Store using
// in-memory storage.
type Repository struct {
	mu   *sync.RWMutex
	st   *state
	inTx bool
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		mu: &sync.RWMutex{},
		st: &state{
			contents:  make(map[int64]*vc.ContentInfo),
			versions:  make(map[verKey]*vc.VersionInfo),
			names:     make(map[nameKey]string),
			relations: make(map[int64]*vc.Relation),
			languages: make(map[int64]vc.Language),
			locations: make(map[int64]*vc.Location),
			types:     make(map[typeKey]*vc.ContentType),
		},
	}
}

var (
	_ vc.Gateway   = (*Repository)(nil)
	_ schema.Store = (*Repository)(nil)
)

// lock acquires the write lock unless the repository is a
// transaction-scoped view, which already holds it.
func (r *Repository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *Repository) rlock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// InTransaction serializes the whole function under the write lock and
// restores a snapshot of every table when fn fails, so multi-statement
// sequences roll back the way a database transaction would.
func (r *Repository) InTransaction(ctx context.Context, fn func(tx vc.Gateway) error) error {
	if r.inTx {
		// Nested transactions join the outer one.
		return fn(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.st.snapshot()
	if err := fn(&Repository{mu: r.mu, st: r.st, inTx: true}); err != nil {
		r.st.restore(snap)
		return err
	}
	return nil
}

func (s *state) snapshot() *state {
	snap := &state{
		contents:       make(map[int64]*vc.ContentInfo, len(s.contents)),
		versions:       make(map[verKey]*vc.VersionInfo, len(s.versions)),
		fields:         append([]vc.Field(nil), s.fields...),
		names:          make(map[nameKey]string, len(s.names)),
		relations:      make(map[int64]*vc.Relation, len(s.relations)),
		languages:      make(map[int64]vc.Language, len(s.languages)),
		locations:      make(map[int64]*vc.Location, len(s.locations)),
		assignments:    append([]vc.NodeAssignment(nil), s.assignments...),
		types:          make(map[typeKey]*vc.ContentType, len(s.types)),
		nextContentID:  s.nextContentID,
		nextFieldID:    s.nextFieldID,
		nextRelationID: s.nextRelationID,
		nextLocationID: s.nextLocationID,
		nextTypeID:     s.nextTypeID,
		nextFieldDefID: s.nextFieldDefID,
	}
	for k, v := range s.contents {
		cp := *v
		snap.contents[k] = &cp
	}
	for k, v := range s.versions {
		snap.versions[k] = cloneVersion(v)
	}
	for k, v := range s.names {
		snap.names[k] = v
	}
	for k, v := range s.relations {
		cp := *v
		snap.relations[k] = &cp
	}
	for k, v := range s.languages {
		snap.languages[k] = v
	}
	for k, v := range s.locations {
		cp := *v
		snap.locations[k] = &cp
	}
	for k, v := range s.types {
		snap.types[k] = cloneType(v)
	}
	return snap
}

func (s *state) restore(snap *state) {
	*s = *snap
}

// Content rows

func (r *Repository) InsertContent(ctx context.Context, info *vc.ContentInfo) error {
	defer r.lock()()

	if info.ID == 0 {
		r.st.nextContentID++
		info.ID = r.st.nextContentID
	} else if info.ID > r.st.nextContentID {
		r.st.nextContentID = info.ID
	}
	cp := *info
	r.st.contents[info.ID] = &cp
	return nil
}

func (r *Repository) UpdateContent(ctx context.Context, info *vc.ContentInfo) error {
	defer r.lock()()

	if _, ok := r.st.contents[info.ID]; !ok {
		return vc.ErrContentNotFound
	}
	cp := *info
	r.st.contents[info.ID] = &cp
	return nil
}

func (r *Repository) LoadContentInfo(ctx context.Context, id int64) (*vc.ContentInfo, error) {
	defer r.rlock()()

	info, ok := r.st.contents[id]
	if !ok {
		return nil, vc.ErrContentNotFound
	}
	cp := *info
	return &cp, nil
}

func (r *Repository) LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*vc.ContentInfo, error) {
	defer r.rlock()()

	for _, info := range r.st.contents {
		if info.RemoteID == remoteID {
			cp := *info
			return &cp, nil
		}
	}
	return nil, vc.ErrContentNotFound
}

func (r *Repository) LoadContentInfoList(ctx context.Context, ids []int64) ([]*vc.ContentInfo, error) {
	defer r.rlock()()

	out := make([]*vc.ContentInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := r.st.contents[id]; ok {
			cp := *info
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repository) SetContentStatus(ctx context.Context, id int64, status vc.ContentStatus) error {
	defer r.lock()()

	info, ok := r.st.contents[id]
	if !ok {
		return vc.ErrContentNotFound
	}
	info.Status = status
	info.Modified = time.Now().UTC()
	return nil
}

func (r *Repository) ContentIDsByTypeID(ctx context.Context, typeID int64) ([]int64, error) {
	defer r.rlock()()

	var ids []int64
	for id, info := range r.st.contents {
		if info.TypeID == typeID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Repository) DeleteContentRows(ctx context.Context, id int64) error {
	defer r.lock()()

	if _, ok := r.st.contents[id]; !ok {
		return vc.ErrContentNotFound
	}
	delete(r.st.contents, id)
	for k := range r.st.versions {
		if k.contentID == id {
			delete(r.st.versions, k)
		}
	}
	kept := r.st.fields[:0]
	for _, f := range r.st.fields {
		if f.ContentID != id {
			kept = append(kept, f)
		}
	}
	r.st.fields = kept
	for k := range r.st.names {
		if k.contentID == id {
			delete(r.st.names, k)
		}
	}
	for relID, rel := range r.st.relations {
		if rel.SourceContentID == id || rel.DestContentID == id {
			delete(r.st.relations, relID)
		}
	}
	keptAssign := r.st.assignments[:0]
	for _, a := range r.st.assignments {
		if a.ContentID != id {
			keptAssign = append(keptAssign, a)
		}
	}
	r.st.assignments = keptAssign
	return nil
}

// Version rows

func (r *Repository) InsertVersion(ctx context.Context, v *vc.VersionInfo) error {
	defer r.lock()()

	r.st.versions[verKey{v.ContentID, v.VersionNo}] = cloneVersion(v)
	return nil
}

func (r *Repository) UpdateVersion(ctx context.Context, v *vc.VersionInfo) error {
	defer r.lock()()

	key := verKey{v.ContentID, v.VersionNo}
	if _, ok := r.st.versions[key]; !ok {
		return vc.ErrVersionNotFound
	}
	r.st.versions[key] = cloneVersion(v)
	return nil
}

func (r *Repository) LoadVersionInfo(ctx context.Context, contentID int64, versionNo int) (*vc.VersionInfo, error) {
	defer r.rlock()()

	v, ok := r.st.versions[verKey{contentID, versionNo}]
	if !ok {
		return nil, vc.ErrVersionNotFound
	}
	return cloneVersion(v), nil
}

func (r *Repository) LoadPublishedVersionInfo(ctx context.Context, contentID int64) (*vc.VersionInfo, error) {
	defer r.rlock()()

	for k, v := range r.st.versions {
		if k.contentID == contentID && v.Status == vc.VersionStatusPublished {
			return cloneVersion(v), nil
		}
	}
	return nil, vc.ErrVersionNotFound
}

func (r *Repository) ListVersions(ctx context.Context, contentID int64, filter vc.VersionFilter) ([]*vc.VersionInfo, error) {
	defer r.rlock()()

	var out []*vc.VersionInfo
	for k, v := range r.st.versions {
		if k.contentID != contentID {
			continue
		}
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		if filter.ModifiedBefore != nil && !v.Modified.Before(*filter.ModifiedBefore) {
			continue
		}
		out = append(out, cloneVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNo < out[j].VersionNo })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Repository) ListVersionsForUser(ctx context.Context, userID int64, status vc.VersionStatus) ([]*vc.VersionInfo, error) {
	defer r.rlock()()

	var out []*vc.VersionInfo
	for _, v := range r.st.versions {
		if v.CreatorID != userID {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, cloneVersion(v))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContentID != out[j].ContentID {
			return out[i].ContentID < out[j].ContentID
		}
		return out[i].VersionNo < out[j].VersionNo
	})
	return out, nil
}

func (r *Repository) ListVersionsByStatus(ctx context.Context, status vc.VersionStatus, modifiedBefore time.Time, limit int) ([]*vc.VersionInfo, error) {
	defer r.rlock()()

	var out []*vc.VersionInfo
	for _, v := range r.st.versions {
		if v.Status != status {
			continue
		}
		if !modifiedBefore.IsZero() && !v.Modified.Before(modifiedBefore) {
			continue
		}
		out = append(out, cloneVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.Before(out[j].Modified) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) SetVersionStatus(ctx context.Context, contentID int64, versionNo int, status vc.VersionStatus) error {
	defer r.lock()()

	v, ok := r.st.versions[verKey{contentID, versionNo}]
	if !ok {
		return vc.ErrVersionNotFound
	}
	v.Status = status
	v.Modified = time.Now().UTC()
	return nil
}

func (r *Repository) NextVersionNo(ctx context.Context, contentID int64) (int, error) {
	defer r.rlock()()

	max := 0
	for k := range r.st.versions {
		if k.contentID == contentID && k.versionNo > max {
			max = k.versionNo
		}
	}
	return max + 1, nil
}

func (r *Repository) DeleteVersionRow(ctx context.Context, contentID int64, versionNo int) error {
	defer r.lock()()

	key := verKey{contentID, versionNo}
	if _, ok := r.st.versions[key]; !ok {
		return vc.ErrVersionNotFound
	}
	delete(r.st.versions, key)
	return nil
}

func (r *Repository) MarkPublished(ctx context.Context, contentID int64, versionNo int, at time.Time) error {
	defer r.lock()()

	v, ok := r.st.versions[verKey{contentID, versionNo}]
	if !ok {
		return vc.ErrVersionNotFound
	}
	info, ok := r.st.contents[contentID]
	if !ok {
		return vc.ErrContentNotFound
	}
	// The conditional guard: losing a publish race must not overwrite
	// the winner.
	for k, other := range r.st.versions {
		if k.contentID == contentID && k.versionNo != versionNo && other.Status == vc.VersionStatusPublished {
			return vc.ErrPublishConflict
		}
	}
	v.Status = vc.VersionStatusPublished
	v.Modified = at
	info.Status = vc.ContentStatusPublished
	info.CurrentVersionNo = versionNo
	info.Published = at
	info.Modified = at
	return nil
}

// Field rows

func (r *Repository) InsertFields(ctx context.Context, fields []vc.Field) ([]vc.Field, error) {
	defer r.lock()()

	out := make([]vc.Field, len(fields))
	for i, f := range fields {
		if f.ID == 0 {
			r.st.nextFieldID++
			f.ID = r.st.nextFieldID
		} else if f.ID > r.st.nextFieldID {
			r.st.nextFieldID = f.ID
		}
		r.st.fields = append(r.st.fields, f)
		out[i] = f
	}
	return out, nil
}

func (r *Repository) InsertExistingField(ctx context.Context, field vc.Field) error {
	defer r.lock()()

	if field.ID == 0 {
		return fmt.Errorf("%w: existing field requires an id", vc.ErrInvalidArgument)
	}
	r.st.fields = append(r.st.fields, field)
	return nil
}

func (r *Repository) UpdateField(ctx context.Context, field vc.Field) error {
	defer r.lock()()

	for i, f := range r.st.fields {
		if f.ID == field.ID && f.VersionNo == field.VersionNo && f.LanguageCode == field.LanguageCode {
			r.st.fields[i] = field
			return nil
		}
	}
	return vc.ErrFieldNotFound
}

func (r *Repository) LoadFields(ctx context.Context, contentID int64, versionNo int) ([]vc.Field, error) {
	defer r.rlock()()

	var out []vc.Field
	for _, f := range r.st.fields {
		if f.ContentID == contentID && f.VersionNo == versionNo {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].LanguageCode < out[j].LanguageCode
	})
	return out, nil
}

func (r *Repository) DeleteFields(ctx context.Context, contentID int64, versionNo int, languageCode string) error {
	defer r.lock()()

	kept := r.st.fields[:0]
	for _, f := range r.st.fields {
		match := f.ContentID == contentID &&
			(versionNo < 0 || f.VersionNo == versionNo) &&
			(languageCode == "" || f.LanguageCode == languageCode)
		if !match {
			kept = append(kept, f)
		}
	}
	r.st.fields = kept
	return nil
}

func (r *Repository) DeleteFieldsByDefinition(ctx context.Context, contentID int64, fieldDefinitionID int64) error {
	defer r.lock()()

	kept := r.st.fields[:0]
	for _, f := range r.st.fields {
		if f.ContentID != contentID || f.FieldDefinitionID != fieldDefinitionID {
			kept = append(kept, f)
		}
	}
	r.st.fields = kept
	return nil
}

func (r *Repository) FieldRefsByType(ctx context.Context, contentID int64) (map[string][]vc.FieldRef, error) {
	defer r.rlock()()

	out := make(map[string][]vc.FieldRef)
	for _, f := range r.st.fields {
		if f.ContentID != contentID {
			continue
		}
		out[f.Type] = append(out[f.Type], vc.FieldRef{
			ContentID:    f.ContentID,
			VersionNo:    f.VersionNo,
			FieldID:      f.ID,
			LanguageCode: f.LanguageCode,
		})
	}
	return out, nil
}

// Name rows

func (r *Repository) SetName(ctx context.Context, contentID int64, versionNo int, languageCode, name string) error {
	defer r.lock()()

	r.st.names[nameKey{contentID, versionNo, languageCode}] = name
	return nil
}

func (r *Repository) DeleteNames(ctx context.Context, contentID int64, versionNo int, languageCode string) error {
	defer r.lock()()

	for k := range r.st.names {
		if k.contentID != contentID {
			continue
		}
		if versionNo >= 0 && k.versionNo != versionNo {
			continue
		}
		if languageCode != "" && k.language != languageCode {
			continue
		}
		delete(r.st.names, k)
	}
	return nil
}

func (r *Repository) LoadNames(ctx context.Context, contentID int64, versionNo int) (map[string]string, error) {
	defer r.rlock()()

	out := make(map[string]string)
	for k, name := range r.st.names {
		if k.contentID == contentID && k.versionNo == versionNo {
			out[k.language] = name
		}
	}
	return out, nil
}

// Relation rows

func (r *Repository) InsertRelation(ctx context.Context, rel *vc.Relation) error {
	defer r.lock()()

	if rel.ID == 0 {
		r.st.nextRelationID++
		rel.ID = r.st.nextRelationID
	} else if rel.ID > r.st.nextRelationID {
		r.st.nextRelationID = rel.ID
	}
	cp := *rel
	r.st.relations[rel.ID] = &cp
	return nil
}

func (r *Repository) DeleteRelation(ctx context.Context, relationID int64, kind vc.RelationTypeMask) error {
	defer r.lock()()

	rel, ok := r.st.relations[relationID]
	if !ok {
		return vc.ErrRelationNotFound
	}
	rel.Type = rel.Type.Clear(kind)
	if rel.Type == 0 {
		delete(r.st.relations, relationID)
	}
	return nil
}

func (r *Repository) LoadRelation(ctx context.Context, relationID int64) (*vc.Relation, error) {
	defer r.rlock()()

	rel, ok := r.st.relations[relationID]
	if !ok {
		return nil, vc.ErrRelationNotFound
	}
	cp := *rel
	return &cp, nil
}

func (r *Repository) LoadRelations(ctx context.Context, contentID int64, versionNo int, kind vc.RelationTypeMask) ([]vc.Relation, error) {
	defer r.rlock()()

	var out []vc.Relation
	for _, rel := range r.st.relations {
		if rel.SourceContentID != contentID {
			continue
		}
		if versionNo >= 0 && rel.SourceVersionNo != versionNo {
			continue
		}
		if kind != 0 && !rel.Type.Has(kind) {
			continue
		}
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) LoadReverseRelations(ctx context.Context, destContentID int64, kind vc.RelationTypeMask) ([]vc.Relation, error) {
	defer r.rlock()()

	var out []vc.Relation
	for _, rel := range r.st.relations {
		if rel.DestContentID != destContentID {
			continue
		}
		if kind != 0 && !rel.Type.Has(kind) {
			continue
		}
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) CopyRelations(ctx context.Context, srcContentID, dstContentID int64) error {
	defer r.lock()()

	var copies []vc.Relation
	for _, rel := range r.st.relations {
		if rel.SourceContentID == srcContentID {
			cp := *rel
			cp.SourceContentID = dstContentID
			copies = append(copies, cp)
		}
	}
	sort.Slice(copies, func(i, j int) bool { return copies[i].ID < copies[j].ID })
	for i := range copies {
		r.st.nextRelationID++
		copies[i].ID = r.st.nextRelationID
		cp := copies[i]
		r.st.relations[cp.ID] = &cp
	}
	return nil
}

func (r *Repository) DeleteRelations(ctx context.Context, contentID int64, versionNo int) error {
	defer r.lock()()

	for id, rel := range r.st.relations {
		if rel.SourceContentID != contentID {
			continue
		}
		if versionNo >= 0 && rel.SourceVersionNo != versionNo {
			continue
		}
		delete(r.st.relations, id)
	}
	return nil
}

// Language rows

func (r *Repository) InsertLanguage(ctx context.Context, lang *vc.Language) error {
	defer r.lock()()

	if _, ok := r.st.languages[lang.ID]; ok {
		return fmt.Errorf("%w: language id %d already registered", vc.ErrInvalidArgument, lang.ID)
	}
	r.st.languages[lang.ID] = *lang
	return nil
}

func (r *Repository) ListLanguages(ctx context.Context) ([]vc.Language, error) {
	defer r.rlock()()

	out := make([]vc.Language, 0, len(r.st.languages))
	for _, lang := range r.st.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Locations and node assignments

func (r *Repository) CreateNodeAssignment(ctx context.Context, a *vc.NodeAssignment) error {
	defer r.lock()()

	r.st.assignments = append(r.st.assignments, *a)
	return nil
}

func (r *Repository) ListNodeAssignments(ctx context.Context, contentID int64, versionNo int) ([]vc.NodeAssignment, error) {
	defer r.rlock()()

	var out []vc.NodeAssignment
	for _, a := range r.st.assignments {
		if a.ContentID != contentID {
			continue
		}
		if versionNo >= 0 && a.VersionNo != versionNo {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Repository) DeleteNodeAssignments(ctx context.Context, contentID int64, versionNo int) error {
	defer r.lock()()

	kept := r.st.assignments[:0]
	for _, a := range r.st.assignments {
		match := a.ContentID == contentID && (versionNo < 0 || a.VersionNo == versionNo)
		if !match {
			kept = append(kept, a)
		}
	}
	r.st.assignments = kept
	return nil
}

func (r *Repository) InsertLocation(ctx context.Context, loc *vc.Location) error {
	defer r.lock()()

	if loc.ID == 0 {
		r.st.nextLocationID++
		loc.ID = r.st.nextLocationID
	} else if loc.ID > r.st.nextLocationID {
		r.st.nextLocationID = loc.ID
	}
	if loc.MainLocationID == 0 {
		loc.MainLocationID = loc.ID
	}
	cp := *loc
	r.st.locations[loc.ID] = &cp
	return nil
}

func (r *Repository) LoadLocation(ctx context.Context, id int64) (*vc.Location, error) {
	defer r.rlock()()

	loc, ok := r.st.locations[id]
	if !ok {
		return nil, vc.ErrLocationNotFound
	}
	cp := *loc
	return &cp, nil
}

func (r *Repository) LocationsByContent(ctx context.Context, contentID int64) ([]*vc.Location, error) {
	defer r.rlock()()

	var out []*vc.Location
	for _, loc := range r.st.locations {
		if loc.ContentID == contentID {
			cp := *loc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) Children(ctx context.Context, locationID int64) ([]*vc.Location, error) {
	defer r.rlock()()

	var out []*vc.Location
	for _, loc := range r.st.locations {
		if loc.ParentID == locationID {
			cp := *loc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) FallbackMainLocation(ctx context.Context, contentID int64, excludeLocationID int64) (*vc.Location, error) {
	defer r.rlock()()

	var best *vc.Location
	for _, loc := range r.st.locations {
		if loc.ContentID != contentID || loc.ID == excludeLocationID {
			continue
		}
		if best == nil || loc.ID < best.ID {
			best = loc
		}
	}
	if best == nil {
		return nil, vc.ErrLocationNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *Repository) SetMainLocation(ctx context.Context, contentID int64, locationID int64) error {
	defer r.lock()()

	found := false
	for _, loc := range r.st.locations {
		if loc.ContentID == contentID {
			loc.MainLocationID = locationID
			found = true
		}
	}
	if !found {
		return vc.ErrLocationNotFound
	}
	return nil
}

func (r *Repository) DeleteLocation(ctx context.Context, id int64) error {
	defer r.lock()()

	if _, ok := r.st.locations[id]; !ok {
		return vc.ErrLocationNotFound
	}
	delete(r.st.locations, id)
	return nil
}

// Content type rows (schema.Store)

func (r *Repository) InsertType(ctx context.Context, t *vc.ContentType) error {
	defer r.lock()()

	if t.ID == 0 {
		r.st.nextTypeID++
		t.ID = r.st.nextTypeID
	} else if t.ID > r.st.nextTypeID {
		r.st.nextTypeID = t.ID
	}
	key := typeKey{t.ID, t.Status}
	if _, ok := r.st.types[key]; ok {
		return fmt.Errorf("%w: type %d already has a %s revision", vc.ErrInvalidArgument, t.ID, t.Status)
	}
	for i := range t.FieldDefinitions {
		r.assignFieldDefID(&t.FieldDefinitions[i])
	}
	r.st.types[key] = cloneType(t)
	return nil
}

func (r *Repository) UpdateType(ctx context.Context, t *vc.ContentType) error {
	defer r.lock()()

	key := typeKey{t.ID, t.Status}
	if _, ok := r.st.types[key]; !ok {
		return vc.ErrTypeNotFound
	}
	for i := range t.FieldDefinitions {
		r.assignFieldDefID(&t.FieldDefinitions[i])
	}
	r.st.types[key] = cloneType(t)
	return nil
}

func (r *Repository) LoadType(ctx context.Context, id int64, status vc.TypeStatus) (*vc.ContentType, error) {
	defer r.rlock()()

	t, ok := r.st.types[typeKey{id, status}]
	if !ok {
		return nil, vc.ErrTypeNotFound
	}
	return cloneType(t), nil
}

func (r *Repository) LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error) {
	defer r.rlock()()

	for key, t := range r.st.types {
		if key.status == status && t.Identifier == identifier {
			return cloneType(t), nil
		}
	}
	return nil, vc.ErrTypeNotFound
}

func (r *Repository) ListTypes(ctx context.Context, status vc.TypeStatus) ([]*vc.ContentType, error) {
	defer r.rlock()()

	var out []*vc.ContentType
	for key, t := range r.st.types {
		if key.status == status {
			out = append(out, cloneType(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) DeleteType(ctx context.Context, id int64, status vc.TypeStatus) error {
	defer r.lock()()

	key := typeKey{id, status}
	if _, ok := r.st.types[key]; !ok {
		return vc.ErrTypeNotFound
	}
	delete(r.st.types, key)
	return nil
}

func (r *Repository) InsertFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error {
	defer r.lock()()

	t, ok := r.st.types[typeKey{typeID, status}]
	if !ok {
		return vc.ErrTypeNotFound
	}
	r.assignFieldDefID(def)
	t.FieldDefinitions = append(t.FieldDefinitions, *def)
	t.Modified = time.Now().UTC()
	return nil
}

func (r *Repository) UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error {
	defer r.lock()()

	t, ok := r.st.types[typeKey{typeID, status}]
	if !ok {
		return vc.ErrTypeNotFound
	}
	for i := range t.FieldDefinitions {
		if t.FieldDefinitions[i].ID == def.ID {
			t.FieldDefinitions[i] = def
			t.Modified = time.Now().UTC()
			return nil
		}
	}
	return vc.ErrFieldDefinitionNotFound
}

func (r *Repository) DeleteFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error {
	defer r.lock()()

	t, ok := r.st.types[typeKey{typeID, status}]
	if !ok {
		return vc.ErrTypeNotFound
	}
	for i := range t.FieldDefinitions {
		if t.FieldDefinitions[i].ID == fieldDefinitionID {
			t.FieldDefinitions = append(t.FieldDefinitions[:i], t.FieldDefinitions[i+1:]...)
			t.Modified = time.Now().UTC()
			return nil
		}
	}
	return vc.ErrFieldDefinitionNotFound
}

func (r *Repository) PromoteType(ctx context.Context, typeID int64, from vc.TypeStatus) error {
	defer r.lock()()

	t, ok := r.st.types[typeKey{typeID, from}]
	if !ok {
		return vc.ErrTypeNotFound
	}
	delete(r.st.types, typeKey{typeID, vc.TypeStatusDefined})
	delete(r.st.types, typeKey{typeID, from})
	promoted := cloneType(t)
	promoted.Status = vc.TypeStatusDefined
	promoted.Modified = time.Now().UTC()
	r.st.types[typeKey{typeID, vc.TypeStatusDefined}] = promoted
	return nil
}

// assignFieldDefID allocates from the single global sequence shared by
// every type, so ids are unique across types and statuses.
func (r *Repository) assignFieldDefID(def *vc.FieldDefinition) {
	if def.ID == 0 {
		r.st.nextFieldDefID++
		def.ID = r.st.nextFieldDefID
	} else if def.ID > r.st.nextFieldDefID {
		r.st.nextFieldDefID = def.ID
	}
}

func cloneVersion(v *vc.VersionInfo) *vc.VersionInfo {
	cp := *v
	if v.Names != nil {
		cp.Names = make(map[string]string, len(v.Names))
		for k, name := range v.Names {
			cp.Names[k] = name
		}
	}
	return &cp
}

func cloneType(t *vc.ContentType) *vc.ContentType {
	cp := *t
	cp.Names = cloneStringMap(t.Names)
	cp.Descriptions = cloneStringMap(t.Descriptions)
	cp.FieldDefinitions = make([]vc.FieldDefinition, len(t.FieldDefinitions))
	copy(cp.FieldDefinitions, t.FieldDefinitions)
	for i := range cp.FieldDefinitions {
		cp.FieldDefinitions[i].Names = cloneStringMap(t.FieldDefinitions[i].Names)
		cp.FieldDefinitions[i].Descriptions = cloneStringMap(t.FieldDefinitions[i].Descriptions)
	}
	return &cp
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
