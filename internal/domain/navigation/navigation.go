// Package navigation is the record-navigation state machine behind the
// registration desk forms.
//
// A form is always in one of three modes:
//
//	view ──new──▶ new  ──submit ok──▶ view
//	view ──edit─▶ edit ──submit ok──▶ view
//	new/edit ──cancel──▶ view
//	view ──delete──▶ view (confirming) ──submit──▶ view | new
//
// While a record is being created or edited only submit and cancel are
// accepted. In view mode the index moves over a locally cached record list.
package navigation

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
	ModeView Mode = "view"
)

type Action string

const (
	ActionNew      Action = "new"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionFirst    Action = "first"
	ActionPrevious Action = "previous"
	ActionNext     Action = "next"
	ActionLast     Action = "last"
	ActionSubmit   Action = "submit"
	ActionCancel   Action = "cancel"
	ActionHistory  Action = "history"
	ActionQuit     Action = "quit"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionNew, ActionEdit, ActionDelete, ActionFirst, ActionPrevious, ActionNext,
		ActionLast, ActionSubmit, ActionCancel, ActionHistory, ActionQuit:
		return true
	}
	return false
}

// Effect tells the caller what work a dispatched action requires.
type Effect int

const (
	EffectNone Effect = iota
	// EffectShow renders the record at Index read-only.
	EffectShow
	// EffectBlank starts a blank record with freshly derived numbers.
	EffectBlank
	// EffectLoadEdit copies the record at Index into an editable draft.
	EffectLoadEdit
	// EffectConfirmDelete asks the operator to confirm deleting the record at Index.
	EffectConfirmDelete
	// EffectDelete deletes the record at Index; report the outcome with Deleted.
	EffectDelete
	// EffectCreate persists the draft as a new record; report success with Saved.
	EffectCreate
	// EffectUpdate overwrites the record at Index with the draft; report success with Saved.
	EffectUpdate
	// EffectHistory lists earlier visits of the patient at Index.
	EffectHistory
	// EffectQuit leaves the form.
	EffectQuit
)

// Navigator holds the mode and position of one form. Index is -1 when there
// is no record to show. The zero value is not ready; use Start.
type Navigator struct {
	Mode             Mode `json:"mode"`
	Index            int  `json:"index"`
	Count            int  `json:"count"`
	ConfirmingDelete bool `json:"confirming_delete"`
}

// Start positions a fresh form: new when the store is empty, otherwise view
// on the most recently created record.
func Start(count int) Navigator {
	if count <= 0 {
		return Navigator{Mode: ModeNew, Index: -1}
	}
	return Navigator{Mode: ModeView, Index: count - 1, Count: count}
}

func (n *Navigator) Editable() bool {
	return n.Mode == ModeNew || n.Mode == ModeEdit
}

// HasCurrent reports whether Index points at a cached record.
func (n *Navigator) HasCurrent() bool {
	return n.Index >= 0 && n.Index < n.Count
}

// Dispatch applies a to the navigator. A rejected action returns an error
// and leaves the navigator unchanged. Create, update and delete do not
// change the mode themselves; the caller reports their outcome with Saved
// or Deleted.
func (n *Navigator) Dispatch(a Action) (Effect, error) {
	if !a.IsValid() {
		return EffectNone, ErrUnknownAction
	}

	if n.ConfirmingDelete {
		switch a {
		case ActionSubmit:
			n.ConfirmingDelete = false
			return EffectDelete, nil
		case ActionCancel:
			n.ConfirmingDelete = false
			return EffectShow, nil
		default:
			return EffectNone, ErrConfirmationPending
		}
	}

	switch n.Mode {
	case ModeNew, ModeEdit:
		return n.dispatchEditing(a)
	default:
		return n.dispatchViewing(a)
	}
}

func (n *Navigator) dispatchEditing(a Action) (Effect, error) {
	switch a {
	case ActionSubmit:
		if n.Mode == ModeNew {
			return EffectCreate, nil
		}
		return EffectUpdate, nil
	case ActionCancel:
		if n.Count == 0 {
			n.Mode = ModeNew
			n.Index = -1
			return EffectBlank, nil
		}
		n.Mode = ModeView
		n.clamp()
		return EffectShow, nil
	default:
		return EffectNone, ErrOperationPending
	}
}

func (n *Navigator) dispatchViewing(a Action) (Effect, error) {
	switch a {
	case ActionNew:
		n.Mode = ModeNew
		return EffectBlank, nil
	case ActionEdit:
		if !n.HasCurrent() {
			return EffectNone, ErrNoRecords
		}
		n.Mode = ModeEdit
		return EffectLoadEdit, nil
	case ActionDelete:
		if !n.HasCurrent() {
			return EffectNone, ErrNoRecords
		}
		n.ConfirmingDelete = true
		return EffectConfirmDelete, nil
	case ActionFirst:
		return n.moveTo(0)
	case ActionLast:
		return n.moveTo(n.Count - 1)
	case ActionPrevious:
		return n.moveTo(n.Index - 1)
	case ActionNext:
		return n.moveTo(n.Index + 1)
	case ActionHistory:
		if !n.HasCurrent() {
			return EffectNone, ErrNoRecords
		}
		return EffectHistory, nil
	case ActionQuit:
		return EffectQuit, nil
	case ActionCancel:
		return EffectShow, nil
	default:
		return EffectNone, ErrNothingToSubmit
	}
}

func (n *Navigator) moveTo(target int) (Effect, error) {
	if n.Count == 0 {
		return EffectNone, ErrNoRecords
	}
	if target < 0 || target >= n.Count {
		return EffectNone, ErrNoMoreRecords
	}
	n.Index = target
	return EffectShow, nil
}

// Saved records a successful create or update: the form shows the saved
// record at index within a refreshed list of count records.
func (n *Navigator) Saved(index, count int) {
	n.Mode = ModeView
	n.Count = count
	n.Index = index
	n.clamp()
}

// Deleted records a successful delete; count is the refreshed list length.
// The index stays where it was unless it fell off the end.
func (n *Navigator) Deleted(count int) {
	n.ConfirmingDelete = false
	n.Count = count
	if count == 0 {
		n.Mode = ModeNew
		n.Index = -1
		return
	}
	n.Mode = ModeView
	n.clamp()
}

// Refreshed adopts a new list length after a wholesale reload, keeping the
// mode. A view with nothing left to show becomes new.
func (n *Navigator) Refreshed(count int) {
	n.Count = count
	if n.Mode == ModeView && count == 0 {
		n.Mode = ModeNew
		n.ConfirmingDelete = false
		n.Index = -1
		return
	}
	n.clamp()
}

func (n *Navigator) clamp() {
	switch {
	case n.Count == 0:
		n.Index = -1
	case n.Index < 0:
		n.Index = n.Count - 1
	case n.Index >= n.Count:
		n.Index = n.Count - 1
	}
}
