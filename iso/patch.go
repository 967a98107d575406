package iso

import "strings"

// PendingPatch is one statement that must run after the main program:
// completing a cycle, installing a moved value, re-keying a collection
// entry or applying a lock. Target names the place in the dependency graph
// the patch writes to.
type PendingPatch struct {
	Target string
	Source Value
	Code   string
}

// PatchData is the first message an isolate receives. Code runs once with
// __iso.data bound to Values; every moved or copied binary value and handle
// reaches the isolate through Values.
type PatchData struct {
	Code   string
	Values []Value
}

func patchCode(patches []PendingPatch) string {
	lines := make([]string, len(patches))
	for i, p := range patches {
		lines[i] = p.Code + ";"
	}
	return strings.Join(lines, "\n")
}

// applyPatches installs data, replays code, then removes data again.
func (r *Realm) applyPatches(p PatchData) error {
	if p.Code == "" {
		return nil
	}
	data := ObjectValue(r.NewArray(p.Values...))
	defineHidden(r.namespace, "data", data)
	defer r.namespace.Delete(StringKey("data"))
	_, err := r.Eval(p.Code)
	return err
}
