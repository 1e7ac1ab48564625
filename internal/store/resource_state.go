package store

import (
	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// UpdateResourceRequestedStatus advances the requested side of a
// resource lifecycle. Backward transitions are rejected.
type UpdateResourceRequestedStatus struct {
	Ref    models.ResourceRef
	Status models.RequestedStatus
}

func (UpdateResourceRequestedStatus) Name() string { return "resourceUpdateRequestedStatus" }

func (a UpdateResourceRequestedStatus) apply(ac *applyCtx) error {
	rs, ok := ac.st.ResourceStateOf(a.Ref)
	if !ok {
		return notFound(a.Ref)
	}
	if a.Status < rs.Requested {
		return invalidTransition(a.Ref, "requested %s -> %s", rs.Requested, a.Status)
	}
	ac.commit.PrevRequested = rs.Requested
	rs.Requested = a.Status
	return nil
}

// UpdateResourceActualStatus records an executor-reported status.
// Backward transitions are rejected; Stopping additionally requires
// either an explicit stop request (requested >= Stopped) or the
// AllowStopping flag set by the requestStop entry point. Clients may
// also report Stopping directly, which handlers express with the same
// flag.
type UpdateResourceActualStatus struct {
	Ref           models.ResourceRef
	Status        models.ActualStatus
	AllowStopping bool
}

func (UpdateResourceActualStatus) Name() string { return "resourceUpdateActualStatus" }

func (a UpdateResourceActualStatus) apply(ac *applyCtx) error {
	rs, ok := ac.st.ResourceStateOf(a.Ref)
	if !ok {
		return notFound(a.Ref)
	}
	if a.Status < rs.Actual {
		return invalidTransition(a.Ref, "actual %s -> %s", rs.Actual, a.Status)
	}
	if a.Status == models.ActualStopping &&
		rs.Requested < models.RequestedStopped && !a.AllowStopping {
		return invalidTransition(a.Ref, "actual Stopping before stop was requested")
	}
	ac.commit.PrevActual = rs.Actual
	rs.Actual = a.Status
	return nil
}

// AddDependee links Dependee into Owner's dependee set and mirrors
// Owner on the other side. Both resources must exist.
type AddDependee struct {
	Owner    models.ResourceRef
	Dependee models.ResourceRef
}

func (AddDependee) Name() string { return "resourceAddDependee" }

func (a AddDependee) apply(ac *applyCtx) error {
	return addDependeeLink(ac, a.Owner, a.Dependee)
}

// RemoveDependee is the inverse of AddDependee. Removing from an empty
// dependee set is an error.
type RemoveDependee struct {
	Owner    models.ResourceRef
	Dependee models.ResourceRef
}

func (RemoveDependee) Name() string { return "resourceRemoveDependee" }

func (a RemoveDependee) apply(ac *applyCtx) error {
	owner, ok := ac.st.ResourceStateOf(a.Owner)
	if !ok {
		return notFound(a.Owner)
	}
	if len(owner.Dependees) == 0 {
		return invalidTransition(a.Owner, "remove dependee %s from empty set", a.Dependee)
	}
	return removeDependeeLink(ac, a.Owner, a.Dependee)
}

func addDependeeLink(ac *applyCtx, owner, dependee models.ResourceRef) error {
	ownerState, ok := ac.st.ResourceStateOf(owner)
	if !ok {
		return notFound(owner)
	}
	depState, ok := ac.st.ResourceStateOf(dependee)
	if !ok {
		return notFound(dependee)
	}
	if ownerState.HasDependee(dependee) {
		return nil
	}
	ownerState.Dependees = append(ownerState.Dependees, dependee)
	if !depState.HasDepender(owner) {
		depState.Dependers = append(depState.Dependers, owner)
	}
	ac.commit.DependeeChanged = append(ac.commit.DependeeChanged, owner)
	return nil
}

func removeDependeeLink(ac *applyCtx, owner, dependee models.ResourceRef) error {
	ownerState, ok := ac.st.ResourceStateOf(owner)
	if !ok {
		return notFound(owner)
	}
	if !ownerState.HasDependee(dependee) {
		return nil
	}
	ownerState.Dependees = deleteRef(ownerState.Dependees, dependee)
	if depState, ok := ac.st.ResourceStateOf(dependee); ok {
		depState.Dependers = deleteRef(depState.Dependers, owner)
	}
	ac.commit.DependeeChanged = append(ac.commit.DependeeChanged, owner)
	return nil
}

// dropAllLinks erases every dependee/depender edge touching ref. Used
// when a resource leaves the state so no dangling edges survive.
func dropAllLinks(ac *applyCtx, ref models.ResourceRef) {
	rs, ok := ac.st.ResourceStateOf(ref)
	if !ok {
		return
	}
	for _, dependee := range rs.Dependees {
		if other, ok := ac.st.ResourceStateOf(dependee); ok {
			other.Dependers = deleteRef(other.Dependers, ref)
		}
	}
	for _, depender := range rs.Dependers {
		if other, ok := ac.st.ResourceStateOf(depender); ok {
			other.Dependees = deleteRef(other.Dependees, ref)
			ac.commit.DependeeChanged = append(ac.commit.DependeeChanged, depender)
		}
	}
	rs.Dependees = nil
	rs.Dependers = nil
}

func deleteRef(refs []models.ResourceRef, ref models.ResourceRef) []models.ResourceRef {
	out := refs[:0]
	for _, r := range refs {
		if r != ref {
			out = append(out, r)
		}
	}
	return out
}

func deleteID(ids []models.ID, id models.ID) []models.ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// removeGate enforces that only resources that reached Destroyed leave
// the state, unless removal is a cascade from a parent removal.
func removeGate(rs *models.ResourceState, ref models.ResourceRef, cascade bool) error {
	if cascade {
		return nil
	}
	if rs.Actual != models.ActualDestroyed {
		return invalidTransition(ref, "remove while actual is %s", rs.Actual)
	}
	return nil
}
