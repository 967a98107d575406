package iso

// Replies from an isolate are two-element arrays: [replyResult, value] or
// [replyFault, {name, message, stack}].
const (
	replyResult = 0
	replyFault  = 1
)

// faultReply describes err as a fault reply in r.
func faultReply(r *Realm, err error) Value {
	name, message, trace := errorParts(err)
	record := r.NewObject()
	_ = record.Put("name", NewString(name))
	_ = record.Put("message", NewString(message))
	_ = record.Put("stack", NewString(trace))
	return ObjectValue(r.NewArray(NewInt(replyFault), ObjectValue(record)))
}

func resultReply(r *Realm, v Value) Value {
	return ObjectValue(r.NewArray(NewInt(replyResult), v))
}

// decodeReply splits a reply. A fault is rebuilt in r as an instance of the
// same-named global error type, falling back to Error.
func decodeReply(r *Realm, msg Value) (Value, error) {
	obj := msg.Object()
	if obj == nil || obj.class != ClassArray || obj.arrayLen != 2 {
		return Undefined(), &TransportError{Cause: &UsageError{Message: "malformed reply " + msg.String()}}
	}
	items := obj.Items()
	if items[0].Number() != replyFault {
		return items[1], nil
	}
	desc := items[1].Object()
	field := func(name string) string {
		if desc == nil {
			return ""
		}
		v, _ := desc.getOwnValue(StringKey(name))
		if v.IsUndefined() {
			return ""
		}
		return v.String()
	}
	f := &Fault{Name: field("name"), Message: field("message"), Trace: field("stack")}
	if f.Name == "" {
		f.Name = "Error"
	}
	f.Value = ObjectValue(r.reviveError(f.Name, f.Message, f.Trace))
	return Undefined(), f
}
