package transform

import (
	"fmt"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// cadence setting defaults applied when the export omits a value
var cadenceSettingDefaults = []struct {
	key string
	def any
}{
	{"target_daily_people", 10},
	{"remove_replied", true},
	{"remove_bounced", true},
	{"reschedule_from_pause_enabled", true},
	{"external_identifier", nil},
	{"cadence_function", "outbound"},
	{"added_stage_setting", "Open"},
	{"bounced_stage_setting", "Working"},
	{"finished_stage_setting", "Completed"},
	{"replied_stage_setting", "Do Not Contact"},
}

const (
	sendAfterTimeDelay = "after_time_delay"
	sendAtTime         = "at_time"
)

// cadence flattens a cadence export ({"data": {"cadence_content": ...}})
// into the body accepted by the cadence import endpoint.
func cadence(rec *record.Record, _ Profile) (*record.Record, error) {
	content := rec
	if data := content.GetRecord("data"); data != nil {
		content = data
	}
	if cc := content.GetRecord("cadence_content"); cc != nil {
		content = cc
	}

	src := content.GetRecord("settings")
	name := src.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("cadence settings.name is required")
	}

	settings := record.New()
	settings.Set("name", name)
	for _, d := range cadenceSettingDefaults {
		settings.Set(d.key, valueOr(src, d.key, d.def))
	}

	sharing := content.GetRecord("sharing_settings")
	team := valueOr(sharing, "team_cadence", false)
	sharingOut := record.New()
	sharingOut.Set("team_cadence", team)
	sharingOut.Set("shared", team)

	groups := make([]any, 0)
	for _, g := range content.GetList("step_groups") {
		group, ok := g.(*record.Record)
		if !ok {
			continue
		}
		groups = append(groups, stepGroup(group))
	}
	body := record.New()
	body.Set("step_groups", groups)

	out := record.New()
	out.Set("settings", settings)
	out.Set("sharing_settings", sharingOut)
	out.Set("cadence_content", body)
	return out, nil
}

func stepGroup(group *record.Record) *record.Record {
	automated := group.GetBool("automated", false)
	auto := group.GetRecord("automated_settings")
	if auto == nil {
		auto = record.New()
	}
	if automated {
		switch auto.GetString("send_type", sendAfterTimeDelay) {
		case sendAfterTimeDelay:
			auto.Delete("time_of_day")
			auto.Delete("timezone_mode")
			if !auto.Has("delay_time") {
				auto.Set("delay_time", 0)
			}
		case sendAtTime:
			if !auto.Has("time_of_day") {
				auto.Set("time_of_day", "08:00")
			}
			if !auto.Has("timezone_mode") {
				auto.Set("timezone_mode", "user")
			}
			auto.Delete("delay_time")
		}
	}

	steps := make([]any, 0)
	for _, s := range group.GetList("steps") {
		step, ok := s.(*record.Record)
		if !ok {
			continue
		}
		simplified := record.New()
		for _, k := range []string{"name", "enabled", "type", "type_settings"} {
			simplified.Set(k, valueOr(step, k, nil))
		}
		steps = append(steps, simplified)
	}

	out := record.New()
	out.Set("day", valueOr(group, "day", nil))
	out.Set("due_immediately", valueOr(group, "due_immediately", false))
	out.Set("automated", automated)
	out.Set("reference_id", valueOr(group, "reference_id", nil))
	out.Set("automated_settings", auto)
	out.Set("steps", steps)
	return out
}
