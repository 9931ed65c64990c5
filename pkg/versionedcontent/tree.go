package versionedcontent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TreeService mediates between the content lifecycle and the hierarchical
// placement subsystem, so neither depends on the other directly. It owns
// subtree removal (with main-location re-election), placement
// materialization on publish, cascading content deletion, and the trash
// transitions.
type TreeService struct {
	s *service
}

func newTreeService(s *service) *TreeService {
	return &TreeService{s: s}
}

// LoadLocation returns one location row.
func (t *TreeService) LoadLocation(ctx context.Context, id int64) (*Location, error) {
	return t.s.gateway.LoadLocation(ctx, id)
}

// LocationsByContent lists every location of a content item.
func (t *TreeService) LocationsByContent(ctx context.Context, contentID int64) ([]*Location, error) {
	return t.s.gateway.LocationsByContent(ctx, contentID)
}

// Children lists the direct children of a location.
func (t *TreeService) Children(ctx context.Context, locationID int64) ([]*Location, error) {
	return t.s.gateway.Children(ctx, locationID)
}

// AddLocation places already-published content under an additional parent.
func (t *TreeService) AddLocation(ctx context.Context, contentID int64, parentLocationID int64, isMain bool) (*Location, error) {
	gw := t.s.gateway
	info, err := gw.LoadContentInfo(ctx, contentID)
	if err != nil {
		return nil, err
	}

	var loc *Location
	err = gw.InTransaction(ctx, func(tx Gateway) error {
		existing, err := tx.LocationsByContent(ctx, contentID)
		if err != nil {
			return err
		}

		loc = &Location{ParentID: parentLocationID, ContentID: contentID, Hidden: info.IsHidden}
		if parentLocationID != 0 {
			parent, err := tx.LoadLocation(ctx, parentLocationID)
			if err != nil {
				return err
			}
			loc.Depth = parent.Depth + 1
		}
		if err := tx.InsertLocation(ctx, loc); err != nil {
			return err
		}

		mainID := loc.ID
		if !isMain {
			for _, e := range existing {
				if e.IsMain() {
					mainID = e.MainLocationID
					break
				}
			}
		}
		return tx.SetMainLocation(ctx, contentID, mainID)
	})
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "add_location", Err: err}
	}
	return gw.LoadLocation(ctx, loc.ID)
}

// materialize turns the version's pending node assignments into location
// rows. Runs inside the publish transaction.
func (t *TreeService) materialize(ctx context.Context, tx Gateway, info *ContentInfo, versionNo int) error {
	assignments, err := tx.ListNodeAssignments(ctx, info.ID, versionNo)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	existing, err := tx.LocationsByContent(ctx, info.ID)
	if err != nil {
		return err
	}
	var mainID int64
	for _, e := range existing {
		if e.IsMain() {
			mainID = e.MainLocationID
			break
		}
	}

	for _, a := range assignments {
		loc := &Location{ParentID: a.ParentLocationID, ContentID: info.ID, Hidden: info.IsHidden}
		if a.ParentLocationID != 0 {
			parent, err := tx.LoadLocation(ctx, a.ParentLocationID)
			if err != nil {
				return err
			}
			loc.Depth = parent.Depth + 1
		}
		if err := tx.InsertLocation(ctx, loc); err != nil {
			return err
		}
		if mainID == 0 || a.IsMain {
			mainID = loc.ID
		}
	}

	if err := tx.SetMainLocation(ctx, info.ID, mainID); err != nil {
		return err
	}
	return tx.DeleteNodeAssignments(ctx, info.ID, versionNo)
}

// RemoveSubtree removes a location and everything under it, children
// first. When the removed location is its content's main location, the
// content is either deleted outright (sole location) or re-pointed at a
// deterministically elected fallback main location, with the content's
// section following the new main location's parent.
func (t *TreeService) RemoveSubtree(ctx context.Context, locationID int64) error {
	gw := t.s.gateway
	loc, err := gw.LoadLocation(ctx, locationID)
	if err != nil {
		return err
	}

	children, err := gw.Children(ctx, locationID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := t.RemoveSubtree(ctx, child.ID); err != nil {
			return err
		}
	}

	return t.removeLocation(ctx, loc)
}

func (t *TreeService) removeLocation(ctx context.Context, loc *Location) error {
	gw := t.s.gateway

	if !loc.IsMain() {
		return gw.DeleteLocation(ctx, loc.ID)
	}

	locations, err := gw.LocationsByContent(ctx, loc.ContentID)
	if err != nil {
		return err
	}
	if len(locations) <= 1 {
		// Last placement: the content itself goes.
		if err := gw.DeleteLocation(ctx, loc.ID); err != nil {
			return err
		}
		return t.s.PurgeContent(ctx, loc.ContentID)
	}

	fallback, err := gw.FallbackMainLocation(ctx, loc.ContentID, loc.ID)
	if err != nil {
		return err
	}
	if err := gw.SetMainLocation(ctx, loc.ContentID, fallback.ID); err != nil {
		return err
	}

	if fallback.ParentID != 0 {
		parent, err := gw.LoadLocation(ctx, fallback.ParentID)
		if err != nil {
			return err
		}
		parentInfo, err := gw.LoadContentInfo(ctx, parent.ContentID)
		if err != nil {
			return err
		}
		info, err := gw.LoadContentInfo(ctx, loc.ContentID)
		if err != nil {
			return err
		}
		if info.SectionID != parentInfo.SectionID {
			info.SectionID = parentInfo.SectionID
			info.Modified = time.Now().UTC()
			if err := gw.UpdateContent(ctx, info); err != nil {
				return err
			}
		}
	}

	return gw.DeleteLocation(ctx, loc.ID)
}

// deleteContentCascade removes placed content: draft versions go first,
// then each placement subtree; purging happens inside removeLocation once
// the last placement is gone.
func (t *TreeService) deleteContentCascade(ctx context.Context, contentID int64, locations []*Location) error {
	draftStatus := VersionStatusDraft
	drafts, err := t.s.gateway.ListVersions(ctx, contentID, VersionFilter{Status: &draftStatus})
	if err != nil {
		return err
	}
	for _, d := range drafts {
		if err := t.s.DeleteVersion(ctx, contentID, d.VersionNo); err != nil {
			return err
		}
	}

	for _, loc := range locations {
		// A nested placement may already be gone, removed as part of an
		// earlier subtree.
		if _, err := t.s.gateway.LoadLocation(ctx, loc.ID); err != nil {
			if errors.Is(err, ErrLocationNotFound) {
				continue
			}
			return err
		}
		if err := t.RemoveSubtree(ctx, loc.ID); err != nil {
			return err
		}
	}
	return nil
}

// TrashContent moves a content item to the trash: its locations are
// converted back into pending node assignments and removed, and the
// content row is marked Trashed. Only leaf placements can be trashed.
func (t *TreeService) TrashContent(ctx context.Context, contentID int64) error {
	gw := t.s.gateway
	info, err := gw.LoadContentInfo(ctx, contentID)
	if err != nil {
		return err
	}

	locations, err := gw.LocationsByContent(ctx, contentID)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		children, err := gw.Children(ctx, loc.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return &ContentError{ContentID: contentID, Op: "trash", Err: ErrHasChildren}
		}
	}

	err = gw.InTransaction(ctx, func(tx Gateway) error {
		for _, loc := range locations {
			a := &NodeAssignment{
				ContentID:        contentID,
				VersionNo:        info.CurrentVersionNo,
				ParentLocationID: loc.ParentID,
				IsMain:           loc.IsMain(),
			}
			if err := tx.CreateNodeAssignment(ctx, a); err != nil {
				return err
			}
			if err := tx.DeleteLocation(ctx, loc.ID); err != nil {
				return err
			}
		}
		return tx.SetContentStatus(ctx, contentID, ContentStatusTrashed)
	})
	if err != nil {
		return &ContentError{ContentID: contentID, Op: "trash", Err: err}
	}
	return nil
}

// RestoreContent brings trashed content back: pending assignments are
// materialized into locations again and the content status recomputed
// from its versions.
func (t *TreeService) RestoreContent(ctx context.Context, contentID int64) error {
	gw := t.s.gateway
	info, err := gw.LoadContentInfo(ctx, contentID)
	if err != nil {
		return err
	}
	if info.Status != ContentStatusTrashed {
		return &ContentError{ContentID: contentID, Op: "restore",
			Err: fmt.Errorf("%w: content is not trashed", ErrInvalidArgument)}
	}

	status := ContentStatusDraft
	if _, err := gw.LoadPublishedVersionInfo(ctx, contentID); err == nil {
		status = ContentStatusPublished
	} else if !errors.Is(err, ErrVersionNotFound) {
		return err
	}

	err = gw.InTransaction(ctx, func(tx Gateway) error {
		if err := t.materialize(ctx, tx, info, info.CurrentVersionNo); err != nil {
			return err
		}
		return tx.SetContentStatus(ctx, contentID, status)
	})
	if err != nil {
		return &ContentError{ContentID: contentID, Op: "restore", Err: err}
	}
	return nil
}
