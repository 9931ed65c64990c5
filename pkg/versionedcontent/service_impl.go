package versionedcontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	gateway   Gateway
	storage   *FieldStorageRegistry
	languages LanguageRegistry
	types     TypeSource
	resolver  MissingFieldResolver
	hooks     *Hooks
	logger    *slog.Logger
	tree      *TreeService
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithGateway sets the storage gateway for the service
func WithGateway(gw Gateway) Option {
	return func(s *service) {
		s.gateway = gw
	}
}

// WithFieldStorage registers an external storage backend for a field type
func WithFieldStorage(fieldType string, storage FieldStorage) Option {
	return func(s *service) {
		s.storage.Register(fieldType, storage)
	}
}

// WithFieldTypeAlias maps a legacy field type identifier onto its
// canonical name for storage dispatch
func WithFieldTypeAlias(alias, canonical string) Option {
	return func(s *service) {
		s.storage.RegisterAlias(alias, canonical)
	}
}

// WithLanguages sets the language registry
func WithLanguages(reg LanguageRegistry) Option {
	return func(s *service) {
		s.languages = reg
	}
}

// WithTypeSource sets the content-type source used during content assembly
func WithTypeSource(ts TypeSource) Option {
	return func(s *service) {
		s.types = ts
	}
}

// WithMissingFieldResolver sets the strategy for field slots the type
// declares but no stored row covers
func WithMissingFieldResolver(r MissingFieldResolver) Option {
	return func(s *service) {
		s.resolver = r
	}
}

// WithHooks sets lifecycle hooks
func WithHooks(h *Hooks) Option {
	return func(s *service) {
		s.hooks = h
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		storage: NewFieldStorageRegistry(),
		hooks:   &Hooks{},
	}

	for _, option := range options {
		option(s)
	}

	if s.gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if s.languages == nil {
		reg, _ := NewLanguageRegistry()
		s.languages = reg
	}
	if s.resolver == nil {
		s.resolver = NewDefaultValueResolver()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.tree = newTreeService(s)

	return s, nil
}

func (s *service) Tree() *TreeService         { return s.tree }
func (s *service) Languages() LanguageRegistry { return s.languages }

// Content operations

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error) {
	if req.TypeID == 0 {
		return nil, fmt.Errorf("%w: type id is required", ErrInvalidArgument)
	}
	if req.InitialLanguageCode == "" {
		return nil, fmt.Errorf("%w: initial language is required", ErrInvalidArgument)
	}

	codes := make([]string, 0, len(req.Fields))
	for _, in := range req.Fields {
		codes = append(codes, in.LanguageCode)
	}
	mask, err := EncodeLanguageMask(s.languages, codes, req.InitialLanguageCode, req.AlwaysAvailable)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	remoteID := req.RemoteID
	if remoteID == "" {
		remoteID = uuid.NewString()
	}

	info := &ContentInfo{
		TypeID:           req.TypeID,
		SectionID:        req.SectionID,
		OwnerID:          req.OwnerID,
		CurrentVersionNo: 1,
		MainLanguageCode: req.InitialLanguageCode,
		RemoteID:         remoteID,
		Created:          now,
		Modified:         now,
		Status:           ContentStatusDraft,
		LanguageMask:     mask,
	}

	version := &VersionInfo{
		VersionNo:           1,
		CreatorID:           req.OwnerID,
		Created:             now,
		Modified:            now,
		Status:              VersionStatusDraft,
		InitialLanguageCode: req.InitialLanguageCode,
		LanguageMask:        mask,
		Names:               cloneNames(req.Names),
	}

	var fields []Field
	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.InsertContent(ctx, info); err != nil {
			return err
		}
		version.ContentID = info.ID

		if err := tx.InsertVersion(ctx, version); err != nil {
			return err
		}

		rows := make([]Field, len(req.Fields))
		for i, in := range req.Fields {
			rows[i] = Field{
				ContentID:         info.ID,
				VersionNo:         1,
				FieldDefinitionID: in.FieldDefinitionID,
				Type:              in.Type,
				LanguageCode:      in.LanguageCode,
				Value:             in.Value,
			}
		}
		inserted, err := tx.InsertFields(ctx, rows)
		if err != nil {
			return err
		}
		fields = inserted

		for lang, name := range req.Names {
			if err := tx.SetName(ctx, info.ID, 1, lang, name); err != nil {
				return err
			}
		}

		for _, loc := range req.Locations {
			a := &NodeAssignment{
				ContentID:        info.ID,
				VersionNo:        1,
				ParentLocationID: loc.ParentLocationID,
				IsMain:           loc.IsMain,
			}
			if err := tx.CreateNodeAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "create", err)
		return nil, &ContentError{ContentID: info.ID, Op: "create", Err: err}
	}

	// External payloads are written after the primary rows commit; the
	// two stores are not transactional with each other.
	if err := s.storeExternalData(ctx, fields); err != nil {
		s.hooks.executeOnError(ctx, "create", err)
		return nil, err
	}

	content := &Content{Info: *info, Version: *version, Fields: fields}
	if err := s.hooks.executeAfterContentCreate(ctx, content); err != nil {
		s.logger.Warn("after-create hook failed", "content_id", info.ID, "error", err)
	}
	return content, nil
}

func (s *service) CreateDraftFromVersion(ctx context.Context, contentID int64, versionNo int, creatorID int64) (*Content, error) {
	if versionNo == 0 {
		info, err := s.gateway.LoadContentInfo(ctx, contentID)
		if err != nil {
			return nil, err
		}
		versionNo = info.CurrentVersionNo
	}
	src, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	fields, err := s.gateway.LoadFields(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}

	next, err := s.gateway.NextVersionNo(ctx, contentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	draft := &VersionInfo{
		ContentID:           contentID,
		VersionNo:           next,
		CreatorID:           creatorID,
		Created:             now,
		Modified:            now,
		Status:              VersionStatusDraft,
		InitialLanguageCode: src.InitialLanguageCode,
		LanguageMask:        src.LanguageMask,
		Names:               cloneNames(src.Names),
	}

	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.InsertVersion(ctx, draft); err != nil {
			return err
		}

		// Field ids are preserved; only the version number changes.
		for _, f := range fields {
			clone := f
			clone.VersionNo = next
			if err := tx.InsertExistingField(ctx, clone); err != nil {
				return err
			}
		}

		for lang, name := range draft.Names {
			if err := tx.SetName(ctx, contentID, next, lang, name); err != nil {
				return err
			}
		}

		// Field and asset relations are a projection of field values, so
		// they follow the cloned fields onto the new version.
		rels, err := tx.LoadRelations(ctx, contentID, versionNo, RelationField|RelationAsset)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			clone := rel
			clone.ID = 0
			clone.SourceVersionNo = next
			if err := tx.InsertRelation(ctx, &clone); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "create_draft", err)
		return nil, &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "create_draft", Err: err}
	}

	for _, f := range fields {
		if !s.storage.HasFieldData(f.Type) {
			continue
		}
		dst := refOf(f)
		dst.VersionNo = next
		if err := s.storage.copyFieldData(ctx, f.Type, refOf(f), dst); err != nil {
			s.hooks.executeOnError(ctx, "create_draft", err)
			return nil, err
		}
	}

	return s.LoadContent(ctx, contentID, next)
}

func (s *service) LoadContent(ctx context.Context, contentID int64, versionNo int) (*Content, error) {
	info, err := s.gateway.LoadContentInfo(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if versionNo == 0 {
		versionNo = info.CurrentVersionNo
	}
	version, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	fields, err := s.gateway.LoadFields(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}

	for i := range fields {
		if !s.storage.HasFieldData(fields[i].Type) {
			continue
		}
		data, err := s.storage.getFieldData(ctx, fields[i])
		if err != nil {
			return nil, err
		}
		fields[i].Value.ExternalData = data
	}

	if s.types != nil {
		fields, err = s.resolveMissingFields(ctx, info, version, fields)
		if err != nil {
			return nil, err
		}
	}

	return &Content{Info: *info, Version: *version, Fields: fields}, nil
}

// resolveMissingFields fills field slots the content type declares but no
// stored row covers, via the per-field-type resolution strategy.
func (s *service) resolveMissingFields(ctx context.Context, info *ContentInfo, version *VersionInfo, fields []Field) ([]Field, error) {
	t, err := s.types.LoadTypeByID(ctx, info.TypeID)
	if err != nil {
		return nil, err
	}

	langs, _, err := DecodeLanguageMask(s.languages, version.LanguageMask)
	if err != nil {
		return nil, err
	}

	type slot struct {
		def  int64
		lang string
	}
	present := make(map[slot]struct{}, len(fields))
	for _, f := range fields {
		present[slot{f.FieldDefinitionID, f.LanguageCode}] = struct{}{}
	}

	for _, def := range t.FieldDefinitions {
		slotLangs := langs
		if !def.IsTranslatable {
			slotLangs = []string{version.InitialLanguageCode}
		}
		for _, lang := range slotLangs {
			if _, ok := present[slot{def.ID, lang}]; ok {
				continue
			}
			value, err := s.resolver.ResolveMissingField(ctx, def, lang)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{
				ContentID:         info.ID,
				VersionNo:         version.VersionNo,
				FieldDefinitionID: def.ID,
				Type:              def.FieldType,
				LanguageCode:      lang,
				Value:             value,
			})
		}
	}
	return fields, nil
}

func (s *service) LoadContentInfo(ctx context.Context, contentID int64) (*ContentInfo, error) {
	return s.gateway.LoadContentInfo(ctx, contentID)
}

func (s *service) LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*ContentInfo, error) {
	return s.gateway.LoadContentInfoByRemoteID(ctx, remoteID)
}

func (s *service) LoadContentInfoList(ctx context.Context, ids []int64) ([]*ContentInfo, error) {
	rows, err := s.gateway.LoadContentInfoList(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) < len(ids) {
		found := make(map[int64]struct{}, len(rows))
		for _, row := range rows {
			found[row.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				s.logger.Warn("content missing from bulk load, dropped", "content_id", id)
			}
		}
	}
	return rows, nil
}

func (s *service) UpdateMetadata(ctx context.Context, contentID int64, req UpdateMetadataRequest) (*ContentInfo, error) {
	info, err := s.gateway.LoadContentInfo(ctx, contentID)
	if err != nil {
		return nil, err
	}

	if req.SectionID != nil {
		info.SectionID = *req.SectionID
	}
	if req.OwnerID != nil {
		info.OwnerID = *req.OwnerID
	}
	if req.RemoteID != nil {
		info.RemoteID = *req.RemoteID
	}
	if req.IsHidden != nil {
		info.IsHidden = *req.IsHidden
	}
	if req.MainLanguageCode != nil {
		lang, err := s.languages.ByCode(*req.MainLanguageCode)
		if err != nil {
			return nil, err
		}
		if !info.LanguageMask.Has(LanguageMask(lang.ID)) {
			return nil, fmt.Errorf("%w: content %d has no translation %q", ErrInvalidArgument, contentID, lang.Code)
		}
		info.MainLanguageCode = lang.Code
	}
	if req.AlwaysAvailable != nil {
		if *req.AlwaysAvailable {
			info.LanguageMask |= AlwaysAvailableBit
		} else {
			info.LanguageMask = info.LanguageMask.WithoutFlag()
		}
	}
	info.Modified = time.Now().UTC()

	if err := s.gateway.UpdateContent(ctx, info); err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "update_metadata", Err: err}
	}
	return info, nil
}

func (s *service) UpdateContent(ctx context.Context, contentID int64, versionNo int, req UpdateContentRequest) (*Content, error) {
	version, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	if version.Status != VersionStatusDraft {
		return nil, &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "update", Err: ErrVersionNotDraft}
	}

	existing, err := s.gateway.LoadFields(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	type slot struct {
		def  int64
		lang string
	}
	byNeedle := make(map[slot]Field, len(existing))
	for _, f := range existing {
		byNeedle[slot{f.FieldDefinitionID, f.LanguageCode}] = f
	}

	if req.InitialLanguageCode != "" {
		if _, err := s.languages.ByCode(req.InitialLanguageCode); err != nil {
			return nil, err
		}
		version.InitialLanguageCode = req.InitialLanguageCode
	}

	now := time.Now().UTC()
	var stored []Field
	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		var inserts []Field
		for _, in := range req.Fields {
			if cur, ok := byNeedle[slot{in.FieldDefinitionID, in.LanguageCode}]; ok {
				cur.Value = in.Value
				if err := tx.UpdateField(ctx, cur); err != nil {
					return err
				}
				stored = append(stored, cur)
				continue
			}
			inserts = append(inserts, Field{
				ContentID:         contentID,
				VersionNo:         versionNo,
				FieldDefinitionID: in.FieldDefinitionID,
				Type:              in.Type,
				LanguageCode:      in.LanguageCode,
				Value:             in.Value,
			})
		}
		if len(inserts) > 0 {
			rows, err := tx.InsertFields(ctx, inserts)
			if err != nil {
				return err
			}
			stored = append(stored, rows...)
		}

		for lang, name := range req.Names {
			if err := tx.SetName(ctx, contentID, versionNo, lang, name); err != nil {
				return err
			}
			if version.Names == nil {
				version.Names = map[string]string{}
			}
			version.Names[lang] = name
		}

		// Re-encode the version mask over the union of languages now on
		// the version.
		all, err := tx.LoadFields(ctx, contentID, versionNo)
		if err != nil {
			return err
		}
		mask, err := EncodeFieldMask(s.languages, all, version.InitialLanguageCode, version.LanguageMask.AlwaysAvailable())
		if err != nil {
			return err
		}
		version.LanguageMask = mask
		version.Modified = now
		return tx.UpdateVersion(ctx, version)
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "update", err)
		return nil, &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "update", Err: err}
	}

	if err := s.storeExternalData(ctx, stored); err != nil {
		s.hooks.executeOnError(ctx, "update", err)
		return nil, err
	}

	return s.LoadContent(ctx, contentID, versionNo)
}

func (s *service) PublishVersion(ctx context.Context, contentID int64, versionNo int) (*Content, error) {
	info, err := s.gateway.LoadContentInfo(ctx, contentID)
	if err != nil {
		return nil, err
	}
	version, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	if version.Status != VersionStatusDraft {
		return nil, &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "publish", Err: ErrVersionNotDraft}
	}

	// The version observed as published here is the one this publish
	// supersedes. The conditional write below catches any concurrent
	// publisher that slips in between.
	prior, err := s.gateway.LoadPublishedVersionInfo(ctx, contentID)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if prior != nil && prior.VersionNo != versionNo {
			if err := tx.SetVersionStatus(ctx, contentID, prior.VersionNo, VersionStatusArchived); err != nil {
				return err
			}
		}

		if err := s.tree.materialize(ctx, tx, info, versionNo); err != nil {
			return err
		}

		info.Name = displayName(version)
		info.LanguageMask = info.LanguageMask.WithoutFlag() | version.LanguageMask
		if !version.LanguageMask.AlwaysAvailable() {
			info.LanguageMask = info.LanguageMask.WithoutFlag()
		}
		info.Modified = now
		if err := tx.UpdateContent(ctx, info); err != nil {
			return err
		}

		return tx.MarkPublished(ctx, contentID, versionNo, now)
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "publish", err)
		return nil, &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "publish", Err: err}
	}

	content, err := s.LoadContent(ctx, contentID, versionNo)
	if err != nil {
		return nil, err
	}
	if err := s.hooks.executeAfterPublish(ctx, &content.Info, versionNo); err != nil {
		s.logger.Warn("after-publish hook failed", "content_id", contentID, "version_no", versionNo, "error", err)
	}
	return content, nil
}

func (s *service) CopyContent(ctx context.Context, contentID int64, req CopyContentRequest) (*Content, error) {
	srcInfo, err := s.gateway.LoadContentInfo(ctx, contentID)
	if err != nil {
		return nil, err
	}

	var versions []*VersionInfo
	if req.VersionNo != nil {
		v, err := s.gateway.LoadVersionInfo(ctx, contentID, *req.VersionNo)
		if err != nil {
			return nil, err
		}
		versions = []*VersionInfo{v}
	} else {
		versions, err = s.gateway.ListVersions(ctx, contentID, VersionFilter{})
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	owner := req.OwnerID
	if owner == 0 {
		owner = srcInfo.OwnerID
	}

	newInfo := *srcInfo
	newInfo.ID = 0
	newInfo.RemoteID = uuid.NewString()
	newInfo.OwnerID = owner
	newInfo.Created = now
	newInfo.Modified = now
	newInfo.Published = time.Time{}
	newInfo.Status = ContentStatusDraft
	if req.VersionNo != nil {
		newInfo.CurrentVersionNo = 1
	}

	// field id at source -> field copied under the new content, for
	// external payload duplication after commit.
	type copied struct {
		src Field
		dst Field
	}
	var copies []copied

	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.InsertContent(ctx, &newInfo); err != nil {
			return err
		}

		for _, src := range versions {
			v := *src
			v.ContentID = newInfo.ID
			v.CreatorID = owner
			v.Created = now
			v.Modified = now
			// A copy has no published version until it is published.
			if v.Status == VersionStatusPublished {
				v.Status = VersionStatusDraft
			}
			if req.VersionNo != nil {
				v.VersionNo = 1
				v.Status = VersionStatusDraft
			}
			v.Names = cloneNames(src.Names)
			if err := tx.InsertVersion(ctx, &v); err != nil {
				return err
			}

			fields, err := tx.LoadFields(ctx, contentID, src.VersionNo)
			if err != nil {
				return err
			}
			rows := make([]Field, len(fields))
			for i, f := range fields {
				row := f
				row.ID = 0
				row.ContentID = newInfo.ID
				row.VersionNo = v.VersionNo
				rows[i] = row
			}
			inserted, err := tx.InsertFields(ctx, rows)
			if err != nil {
				return err
			}
			for i := range inserted {
				copies = append(copies, copied{src: fields[i], dst: inserted[i]})
			}

			for lang, name := range v.Names {
				if err := tx.SetName(ctx, newInfo.ID, v.VersionNo, lang, name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "copy", err)
		return nil, &ContentError{ContentID: contentID, Op: "copy", Err: err}
	}

	// Relations are bulk-copied after the rows exist; single-version
	// copies take only the copied version's relations.
	if req.VersionNo == nil {
		if err := s.gateway.CopyRelations(ctx, contentID, newInfo.ID); err != nil {
			return nil, &ContentError{ContentID: newInfo.ID, Op: "copy_relations", Err: err}
		}
	} else {
		rels, err := s.gateway.LoadRelations(ctx, contentID, *req.VersionNo, 0)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			clone := rel
			clone.ID = 0
			clone.SourceContentID = newInfo.ID
			clone.SourceVersionNo = 1
			if err := s.gateway.InsertRelation(ctx, &clone); err != nil {
				return nil, &ContentError{ContentID: newInfo.ID, Op: "copy_relations", Err: err}
			}
		}
	}

	for _, c := range copies {
		if !s.storage.HasFieldData(c.src.Type) {
			continue
		}
		if err := s.storage.copyFieldData(ctx, c.src.Type, refOf(c.src), refOf(c.dst)); err != nil {
			s.hooks.executeOnError(ctx, "copy", err)
			return nil, err
		}
	}

	return s.LoadContent(ctx, newInfo.ID, newInfo.CurrentVersionNo)
}

func (s *service) DeleteVersion(ctx context.Context, contentID int64, versionNo int) error {
	version, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return err
	}
	if version.Status == VersionStatusPublished {
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_version", Err: ErrVersionPublished}
	}

	fields, err := s.gateway.LoadFields(ctx, contentID, versionNo)
	if err != nil {
		return err
	}

	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.DeleteNodeAssignments(ctx, contentID, versionNo); err != nil {
			return err
		}
		if err := tx.DeleteFields(ctx, contentID, versionNo, ""); err != nil {
			return err
		}
		if err := tx.DeleteRelations(ctx, contentID, versionNo); err != nil {
			return err
		}
		if err := tx.DeleteNames(ctx, contentID, versionNo, ""); err != nil {
			return err
		}
		return tx.DeleteVersionRow(ctx, contentID, versionNo)
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "delete_version", err)
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_version", Err: err}
	}

	s.deleteExternalData(ctx, fields)
	return nil
}

func (s *service) DeleteContent(ctx context.Context, contentID int64) error {
	locations, err := s.gateway.LocationsByContent(ctx, contentID)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		return s.PurgeContent(ctx, contentID)
	}
	return s.tree.deleteContentCascade(ctx, contentID, locations)
}

func (s *service) PurgeContent(ctx context.Context, contentID int64) error {
	refsByType, err := s.gateway.FieldRefsByType(ctx, contentID)
	if err != nil {
		return err
	}

	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.DeleteNodeAssignments(ctx, contentID, -1); err != nil {
			return err
		}
		return tx.DeleteContentRows(ctx, contentID)
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "purge", err)
		return &ContentError{ContentID: contentID, Op: "purge", Err: err}
	}

	for fieldType, refs := range refsByType {
		s.storage.deleteFieldData(ctx, fieldType, refs, s.logger)
	}

	if err := s.hooks.executeAfterContentDelete(ctx, contentID); err != nil {
		s.logger.Warn("after-delete hook failed", "content_id", contentID, "error", err)
	}
	return nil
}

func (s *service) DeleteTranslationFromContent(ctx context.Context, contentID int64, languageCode string) error {
	lang, err := s.languages.ByCode(languageCode)
	if err != nil {
		return err
	}
	bit := LanguageMask(lang.ID)

	info, err := s.gateway.LoadContentInfo(ctx, contentID)
	if err != nil {
		return err
	}
	if info.MainLanguageCode == languageCode {
		return &ContentError{ContentID: contentID, Op: "delete_translation", Err: ErrMainTranslation}
	}
	newMask, err := RemoveLanguage(info.LanguageMask, bit)
	if err != nil {
		return &ContentError{ContentID: contentID, Op: "delete_translation", Err: err}
	}

	versions, err := s.gateway.ListVersions(ctx, contentID, VersionFilter{})
	if err != nil {
		return err
	}
	removed, err := s.translatedFields(ctx, contentID, versions, languageCode)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	// Field, name and mask updates across three tables run in one
	// transaction with rollback on any step's failure.
	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.DeleteFields(ctx, contentID, -1, languageCode); err != nil {
			return err
		}
		if err := tx.DeleteNames(ctx, contentID, -1, languageCode); err != nil {
			return err
		}

		info.LanguageMask = newMask
		info.Modified = now
		if err := tx.UpdateContent(ctx, info); err != nil {
			return err
		}

		for _, v := range versions {
			if !v.LanguageMask.Has(bit) {
				continue
			}
			vMask, err := RemoveLanguage(v.LanguageMask, bit)
			if err != nil {
				return fmt.Errorf("version %d: %w", v.VersionNo, err)
			}
			v.LanguageMask = vMask
			v.Modified = now
			delete(v.Names, languageCode)
			if err := tx.UpdateVersion(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "delete_translation", err)
		return &ContentError{ContentID: contentID, Op: "delete_translation", Err: err}
	}

	s.deleteExternalData(ctx, removed)
	return nil
}

func (s *service) DeleteTranslationFromDraft(ctx context.Context, contentID int64, versionNo int, languageCode string) error {
	lang, err := s.languages.ByCode(languageCode)
	if err != nil {
		return err
	}
	bit := LanguageMask(lang.ID)

	version, err := s.gateway.LoadVersionInfo(ctx, contentID, versionNo)
	if err != nil {
		return err
	}
	if version.Status != VersionStatusDraft {
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_translation_draft", Err: ErrVersionNotDraft}
	}
	if version.InitialLanguageCode == languageCode {
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_translation_draft", Err: ErrMainTranslation}
	}
	newMask, err := RemoveLanguage(version.LanguageMask, bit)
	if err != nil {
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_translation_draft", Err: err}
	}

	removed, err := s.translatedFields(ctx, contentID, []*VersionInfo{version}, languageCode)
	if err != nil {
		return err
	}

	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		if err := tx.DeleteFields(ctx, contentID, versionNo, languageCode); err != nil {
			return err
		}
		if err := tx.DeleteNames(ctx, contentID, versionNo, languageCode); err != nil {
			return err
		}
		version.LanguageMask = newMask
		version.Modified = time.Now().UTC()
		delete(version.Names, languageCode)
		return tx.UpdateVersion(ctx, version)
	})
	if err != nil {
		s.hooks.executeOnError(ctx, "delete_translation_draft", err)
		return &ContentError{ContentID: contentID, VersionNo: versionNo, Op: "delete_translation_draft", Err: err}
	}

	s.deleteExternalData(ctx, removed)
	return nil
}

func (s *service) ListVersions(ctx context.Context, contentID int64, filter VersionFilter) ([]*VersionInfo, error) {
	return s.gateway.ListVersions(ctx, contentID, filter)
}

func (s *service) ListVersionsForUser(ctx context.Context, userID int64, status VersionStatus) ([]*VersionInfo, error) {
	return s.gateway.ListVersionsForUser(ctx, userID, status)
}

// Relation operations

func (s *service) AddRelation(ctx context.Context, req AddRelationRequest) (*Relation, error) {
	if req.Kind == 0 {
		return nil, fmt.Errorf("%w: relation kind is required", ErrInvalidArgument)
	}
	if _, err := s.gateway.LoadContentInfo(ctx, req.DestContentID); err != nil {
		return nil, err
	}
	if _, err := s.gateway.LoadVersionInfo(ctx, req.SourceContentID, req.SourceVersionNo); err != nil {
		return nil, err
	}

	rel := &Relation{
		SourceContentID:   req.SourceContentID,
		SourceVersionNo:   req.SourceVersionNo,
		FieldDefinitionID: req.FieldDefinitionID,
		Type:              req.Kind,
		DestContentID:     req.DestContentID,
	}
	if err := s.gateway.InsertRelation(ctx, rel); err != nil {
		return nil, &ContentError{ContentID: req.SourceContentID, VersionNo: req.SourceVersionNo, Op: "add_relation", Err: err}
	}
	return rel, nil
}

func (s *service) RemoveRelation(ctx context.Context, relationID int64, kind RelationTypeMask) error {
	if kind == 0 {
		return fmt.Errorf("%w: relation kind is required", ErrInvalidArgument)
	}
	return s.gateway.DeleteRelation(ctx, relationID, kind)
}

func (s *service) LoadRelations(ctx context.Context, contentID int64, versionNo int, kind RelationTypeMask) ([]Relation, error) {
	return s.gateway.LoadRelations(ctx, contentID, versionNo, kind)
}

func (s *service) LoadReverseRelations(ctx context.Context, destContentID int64, kind RelationTypeMask) ([]Relation, error) {
	return s.gateway.LoadReverseRelations(ctx, destContentID, kind)
}

// Schema-change actions

func (s *service) AddFieldForDefinition(ctx context.Context, contentID int64, def FieldDefinition) error {
	versions, err := s.gateway.ListVersions(ctx, contentID, VersionFilter{})
	if err != nil {
		return err
	}

	var rows []Field
	for _, v := range versions {
		langs := []string{v.InitialLanguageCode}
		if def.IsTranslatable {
			decoded, _, err := DecodeLanguageMask(s.languages, v.LanguageMask)
			if err != nil {
				return err
			}
			langs = decoded
		}
		for _, lang := range langs {
			value, err := s.resolver.ResolveMissingField(ctx, def, lang)
			if err != nil {
				return err
			}
			rows = append(rows, Field{
				ContentID:         contentID,
				VersionNo:         v.VersionNo,
				FieldDefinitionID: def.ID,
				Type:              def.FieldType,
				LanguageCode:      lang,
				Value:             value,
			})
		}
	}

	var inserted []Field
	err = s.gateway.InTransaction(ctx, func(tx Gateway) error {
		var err error
		inserted, err = tx.InsertFields(ctx, rows)
		return err
	})
	if err != nil {
		return &ContentError{ContentID: contentID, Op: "add_field", Err: err}
	}

	return s.storeExternalData(ctx, inserted)
}

func (s *service) RemoveFieldByDefinition(ctx context.Context, contentID int64, fieldType string, fieldDefinitionID int64) error {
	var removed []Field
	if s.storage.HasFieldData(fieldType) {
		versions, err := s.gateway.ListVersions(ctx, contentID, VersionFilter{})
		if err != nil {
			return err
		}
		for _, v := range versions {
			fields, err := s.gateway.LoadFields(ctx, contentID, v.VersionNo)
			if err != nil {
				return err
			}
			for _, f := range fields {
				if f.FieldDefinitionID == fieldDefinitionID {
					removed = append(removed, f)
				}
			}
		}
	}

	err := s.gateway.InTransaction(ctx, func(tx Gateway) error {
		return tx.DeleteFieldsByDefinition(ctx, contentID, fieldDefinitionID)
	})
	if err != nil {
		return &ContentError{ContentID: contentID, Op: "remove_field", Err: err}
	}

	s.deleteExternalData(ctx, removed)
	return nil
}

// helpers

// storeExternalData dispatches each field's payload to its backend,
// exactly once per field whose type declares external storage.
func (s *service) storeExternalData(ctx context.Context, fields []Field) error {
	for _, f := range fields {
		if !s.storage.HasFieldData(f.Type) {
			continue
		}
		if err := s.storage.storeFieldData(ctx, f, f.Value.ExternalData); err != nil {
			return err
		}
	}
	return nil
}

// deleteExternalData removes payloads for fields whose type declares
// external storage, grouped per type. Failures are logged, not surfaced:
// the primary rows are already gone.
func (s *service) deleteExternalData(ctx context.Context, fields []Field) {
	byType := make(map[string][]FieldRef)
	for _, f := range fields {
		if !s.storage.HasFieldData(f.Type) {
			continue
		}
		byType[f.Type] = append(byType[f.Type], refOf(f))
	}
	for fieldType, refs := range byType {
		s.storage.deleteFieldData(ctx, fieldType, refs, s.logger)
	}
}

// translatedFields collects the fields in the given language across the
// supplied versions, for external storage cleanup after row deletion.
func (s *service) translatedFields(ctx context.Context, contentID int64, versions []*VersionInfo, languageCode string) ([]Field, error) {
	var out []Field
	for _, v := range versions {
		fields, err := s.gateway.LoadFields(ctx, contentID, v.VersionNo)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			if f.LanguageCode == languageCode {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// displayName picks the content row's name from a version's name set: the
// initial language wins, otherwise the lexicographically first language,
// so the choice is deterministic.
func displayName(v *VersionInfo) string {
	if name, ok := v.Names[v.InitialLanguageCode]; ok && name != "" {
		return name
	}
	codes := make([]string, 0, len(v.Names))
	for code := range v.Names {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if v.Names[code] != "" {
			return v.Names[code]
		}
	}
	return ""
}

func cloneNames(names map[string]string) map[string]string {
	if names == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(names))
	for k, v := range names {
		out[k] = v
	}
	return out
}
