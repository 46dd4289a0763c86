package sdk

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
)

// EndUser is the per-request state of one widget user.
type EndUser struct {
	Traits json.RawMessage
	// Seen holds releases the user already viewed or dismissed.
	Seen map[uuid.UUID]bool
	// Completed holds the track events the user has completed.
	Completed map[string]bool
}

// Personalize filters a snapshot down to what one end user should see at now (epoch seconds).
func Personalize(snap *Snapshot, user EndUser, now int64) models.SdkInitResponse {
	out := models.SdkInitResponse{
		Releases: []models.SdkRelease{},
		Config:   presentation(snap),
	}
	for i := range snap.Releases {
		rel := &snap.Releases[i]
		if !rel.LiveAt(now) || !Matches(rel.TargetTraits, user.Traits) {
			continue
		}
		if rel.ShowOnce && user.Seen[rel.ID] {
			continue
		}
		out.Releases = append(out.Releases, models.SdkRelease{
			ID:          rel.ID,
			Title:       rel.Title,
			Slug:        rel.Slug,
			DisplayType: rel.DisplayType,
			ShowOnce:    rel.ShowOnce,
			ContentHTML: rel.ContentHTML,
			PublishAt:   rel.PublishAt,
		})
	}
	for i := range snap.Checklists {
		cl := &snap.Checklists[i]
		if !cl.IsActive || !Matches(cl.TargetTraits, user.Traits) {
			continue
		}
		out.Checklist = checklistFor(cl, user.Completed)
		break
	}
	return out
}

// NeedsSeen reports whether any live release is show-once, i.e. whether Personalize needs
// the user's seen releases.
func NeedsSeen(snap *Snapshot, now int64) bool {
	for i := range snap.Releases {
		if snap.Releases[i].ShowOnce && snap.Releases[i].LiveAt(now) {
			return true
		}
	}
	return false
}

func checklistFor(cl *models.Checklist, completed map[string]bool) *models.SdkChecklist {
	items := make([]models.SdkChecklistItem, 0, len(cl.Items))
	for _, it := range cl.Items {
		items = append(items, models.SdkChecklistItem{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			ActionURL:   it.ActionURL,
			TrackEvent:  it.TrackEvent,
			Completed:   completed[it.TrackEvent],
		})
	}
	return &models.SdkChecklist{
		ID:          cl.ID,
		Title:       cl.Title,
		Description: cl.Description,
		Items:       items,
	}
}

func presentation(snap *Snapshot) models.SdkPresentation {
	limits := plans.For(snap.Plan)
	p := models.SdkPresentation{
		Theme:          snap.Config.Theme,
		Position:       snap.Config.Position,
		ZIndex:         snap.Config.ZIndex,
		RemoveBranding: limits.RemoveBranding,
	}
	if len(p.Theme) == 0 {
		p.Theme = json.RawMessage(`{}`)
	}
	if limits.CustomCSS {
		p.CustomCSS = snap.Config.CustomCSS
	}
	return p
}
