package board

// EffectiveView is what one user actually sees for an item after the
// per-user overrides resolve. It is a read-time projection; the stored
// item never changes.
type EffectiveView struct {
	Priority   Priority `json:"priority"`
	DueDate    string   `json:"dueDate,omitempty"`
	CustomNote string   `json:"customNote,omitempty"`
}

// Resolve computes the effective view of item for userID. Each field
// falls back to the base item when the override leaves it empty. When
// several overrides name the same user the first one wins.
func Resolve(item WorkItem, userID string) EffectiveView {
	view := EffectiveView{
		Priority:   item.Priority,
		DueDate:    item.ExpiryDate,
		CustomNote: item.CustomNotes,
	}
	for _, o := range item.UserOverrides {
		if o.UserID != userID {
			continue
		}
		if o.Priority != "" {
			view.Priority = o.Priority
		}
		if o.DueDate != "" {
			view.DueDate = o.DueDate
		}
		if o.CustomNote != "" {
			view.CustomNote = o.CustomNote
		}
		break
	}
	return view
}
