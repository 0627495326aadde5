package transform

import (
	"github.com/turnere/Migrator-Tools/pkg/record"
)

// SupportedActionTypes are the flow action types the create endpoint accepts
var SupportedActionTypes = map[string]struct{}{
	"0-35": {}, "0-1": {}, "0-13": {}, "0-4": {}, "0-8": {},
	"0-9": {}, "0-5": {}, "0-3": {}, "0-14": {},
}

const defaultWorkflowDescription = "Created via API"

// workflow rebuilds an exported flow as a new contact workflow. Unsupported
// actions are dropped and the remaining ones are chained in their original
// order.
func workflow(rec *record.Record, _ Profile) (*record.Record, error) {
	out := record.New()
	out.Set("type", "CONTACT_FLOW")
	out.Set("objectTypeId", "0-1")
	out.Set("isEnabled", true)
	out.Set("flowType", "WORKFLOW")
	out.Set("name", "Copy of "+rec.GetString("name", ""))
	out.Set("description", rec.GetString("description", defaultWorkflowDescription))

	criteria := rec.GetRecord("enrollmentCriteria")
	if criteria == nil {
		criteria = record.New()
	}
	out.Set("enrollmentCriteria", criteria)
	out.Set("actions", adjustActions(rec.GetList("actions")))
	return out, nil
}

func adjustActions(actions []any) []any {
	var kept []*record.Record
	for _, a := range actions {
		action, ok := a.(*record.Record)
		if !ok {
			continue
		}
		if _, ok := SupportedActionTypes[action.GetString("actionTypeId", "")]; !ok {
			continue
		}
		kept = append(kept, action)
	}

	keptIDs := make(map[string]struct{}, len(kept))
	for _, a := range kept {
		keptIDs[a.GetString("actionId", "")] = struct{}{}
	}

	out := make([]any, 0, len(kept))
	for i, action := range kept {
		conn := action.GetRecord("connection")
		edgeType := "STANDARD"
		if conn != nil {
			edgeType = conn.GetString("edgeType", edgeType)
		}

		next := ""
		if i+1 < len(kept) {
			next = kept[i+1].GetString("actionId", "")
		} else if conn != nil {
			// the last action may only point at an action that survived
			if id := conn.GetString("nextActionId", ""); id != "" {
				if _, ok := keptIDs[id]; ok {
					next = id
				}
			}
		}

		connection := record.New()
		connection.Set("edgeType", edgeType)
		if next != "" {
			connection.Set("nextActionId", next)
		}

		fields := action.GetRecord("fields")
		if fields == nil {
			fields = record.New()
		}

		adjusted := record.New()
		adjusted.Set("actionId", valueOr(action, "actionId", nil))
		adjusted.Set("type", valueOr(action, "type", nil))
		adjusted.Set("actionTypeVersion", valueOr(action, "actionTypeVersion", 0))
		adjusted.Set("actionTypeId", valueOr(action, "actionTypeId", nil))
		adjusted.Set("fields", fields)
		adjusted.Set("connection", connection)
		out = append(out, adjusted)
	}
	return out
}

func valueOr(rec *record.Record, key string, def any) any {
	if v, ok := rec.Get(key); ok {
		return v
	}
	return def
}
